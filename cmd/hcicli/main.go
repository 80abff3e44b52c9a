// Command hcicli exercises the hci dispatch core against a real Linux
// Bluetooth controller: pick a device, bring up the HCI layer, kick off an
// LE scan, and print advertising reports until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/gd-bt/hci/hal/socket"
	"github.com/gd-bt/hci/hci"
	"github.com/gd-bt/hci/hci/cmd"
	"github.com/gd-bt/hci/hci/evt"
)

func main() {
	app := cli.NewApp()
	app.Name = "hcicli"
	app.Usage = "exercise the hci dispatch core against a real controller"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "device", Value: 0, Usage: "HCI device id (hci0 == 0)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hcicli:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	devID := c.Int("device")

	hal, err := socket.Open(devID)
	if err != nil {
		return errors.Wrapf(err, "can't open hci%d", devID)
	}

	h, err := hci.New(
		hci.WithTransport(hal),
		hci.WithErrorHandler(func(err error) {
			fmt.Fprintln(os.Stderr, "transport error:", errors.Cause(err))
		}),
	)
	if err != nil {
		return errors.Wrap(err, "can't construct hci")
	}

	if err := h.Start(); err != nil {
		return errors.Wrap(err, "can't start hci")
	}
	defer h.Stop()

	scanning := h.GetLeScanningInterface(hci.LeScanningEvents{
		AdvertisingReport: func(r evt.LEAdvertisingReport) {
			for i := 0; i < int(r.NumReports()); i++ {
				addr := r.Address(i)
				fmt.Printf("adv: %02x:%02x:%02x:%02x:%02x:%02x rssi=%d\n",
					addr[5], addr[4], addr[3], addr[2], addr[1], addr[0], r.RSSI(i))
			}
		},
	})

	scanning.SetScanParameters(cmd.LESetScanParameters{
		LEScanType:     0x01, // active
		LEScanInterval: 0x0010,
		LEScanWindow:   0x0010,
		OwnAddressType: 0x00,
	}, func([]byte) {})
	scanning.SetScanEnable(cmd.LESetScanEnable{
		LEScanEnable:     0x01,
		FilterDuplicates: 0x00,
	}, func([]byte) {})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}
