package cmd

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

// ListDevices prints the Vulkan adapters in enumeration order and marks
// the one the renderer would pick.
func ListDevices(ctx *cli.Context) error {
	events := core.NewEventBus()
	p := platform.New(core.NewInput(nil, events), events)
	if err := p.Startup("lumen devices", 64, 64, false); err != nil {
		return err
	}
	defer p.Shutdown()

	instance, err := vulkan.NewInstance(p, vulkan.Config{AppName: "lumen devices"})
	if err != nil {
		return err
	}
	defer instance.Release()

	adapters, err := instance.Adapters()
	if err != nil {
		return err
	}
	selected, dev, err := gpu.SelectAdapter(adapters, gpu.FeatureLevelBindless)
	if err != nil {
		core.LogWarn("no compatible adapter: %v", err)
	} else {
		dev.Release()
	}

	fmt.Print(adapterTable(adapters, selected))
	return nil
}

func adapterTable(adapters []gpu.Adapter, selected gpu.Adapter) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Name", "Type", "Vendor", "Device", "API", "Selected"})
	for i, a := range adapters {
		info := a.Info()
		mark := ""
		if a == selected {
			mark = "*"
		}
		table.Append([]string{
			fmt.Sprintf("%d", i),
			info.Name,
			info.Type,
			fmt.Sprintf("0x%04x", info.VendorID),
			fmt.Sprintf("0x%04x", info.DeviceID),
			info.APIVersion,
			mark,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "TOTAL", fmt.Sprintf("%d", len(adapters))})
	table.Render()
	return buf.String()
}
