package main

import (
	"fmt"
	"os"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	vkrt "github.com/captgao/tvm-de10pro"
)

func main() {
	var log *zap.SugaredLogger

	app := &cli.App{
		Name:  "vkinfo",
		Usage: "inspect the Vulkan devices this runtime would drive",
		Before: func(c *cli.Context) error {
			l, err := zap.NewProduction()
			if err != nil {
				return err
			}
			log = l.Sugar().Named("vkinfo")
			vkrt.SetLogger(log)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every device the runtime would enumerate",
				Action: func(c *cli.Context) error {
					api, err := vkrt.InitDeviceAPI("vkinfo")
					if err != nil {
						return err
					}
					defer api.Shutdown()

					for i := 0; i < api.NumDevices(); i++ {
						dc := api.Context(i)
						fmt.Printf("%d: %s\n", i, dc.Target.String())
					}
					return nil
				},
			},
			{
				Name:      "describe",
				Usage:     "print the full capability map for one device",
				ArgsUsage: "<device-index>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("describe requires exactly one device-index argument", 1)
					}
					index, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return cli.Exit(fmt.Sprintf("invalid device index %q", c.Args().First()), 1)
					}

					api, err := vkrt.InitDeviceAPI("vkinfo")
					if err != nil {
						return err
					}
					defer api.Shutdown()

					dc := api.Context(index)
					if dc == nil {
						return cli.Exit(fmt.Sprintf("no device at index %d (have %d)", index, api.NumDevices()), 1)
					}
					describeTarget(dc.Target)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if log != nil {
			log.Fatalw("vkinfo failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func describeTarget(t *vkrt.Target) {
	fmt.Printf("Device:              %s\n", t.DeviceName)
	fmt.Printf("Driver:              %s (%s)\n", t.DriverName, t.DriverVersion)
	fmt.Printf("API version:         %s (conformance-clamped: %v)\n", t.APIVersion, t.ConformanceClamped)
	fmt.Printf("Max SPIR-V version:  %#x\n", t.MaxSPIRVVersion)
	fmt.Printf("Warp size:           %d\n", t.ThreadWarpSize)
	fmt.Printf("Max workgroup size:  %v\n", t.MaxWorkgroupSize)
	fmt.Printf("Max invocations:     %d\n", t.MaxWorkgroupInvocations)
	fmt.Printf("Shared memory:       %s\n", units.BytesSize(float64(t.MaxComputeSharedMemoryBytes)))
	fmt.Printf("Push constants:      %s\n", units.BytesSize(float64(t.MaxPushConstantsSize)))
	fmt.Printf("UBO range:           %s\n", units.BytesSize(float64(t.MaxUBORange)))
	fmt.Printf("SSBO range:          %s\n", units.BytesSize(float64(t.MaxSSBORange)))
	fmt.Printf("Per-stage SSBOs:     %d\n", t.MaxPerStageSSBOs)
	fmt.Printf("float16/float64/int8/int16/int64: %v/%v/%v/%v/%v\n",
		t.SupportsFloat16, t.SupportsFloat64, t.SupportsInt8, t.SupportsInt16, t.SupportsInt64)
	fmt.Printf("8-bit/16-bit storage: %v/%v\n", t.Supports8BitStorage, t.Supports16BitStorage)
	fmt.Printf("Push descriptor:     %v\n", t.SupportsPushDescriptor)
	fmt.Printf("Dedicated alloc:     %v\n", t.SupportsDedicatedAllocation)
}
