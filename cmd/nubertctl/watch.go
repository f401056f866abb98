package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/groutine"
	"github.com/xuio/nubert-hass/internal/session"
)

var watchFrames bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream device state changes",
	Long: `Run the reconciliation loop and print a line for every state change
until interrupted. With --frames, the raw protocol frames are printed too.`,
	RunE: runWatch,
}

func init() {
	addDeviceFlags(watchCmd)
	watchCmd.Flags().BoolVar(&watchFrames, "frames", false, "Print raw protocol frames")
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
		groutine.Go(ctx, "watch-loop", func(ctx context.Context) {
			_ = sess.Run(ctx)
		})

		for {
			select {
			case snap := <-sess.Events():
				fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), formatSnapshot(snap))
				if watchFrames {
					printFrames(sess.Frames())
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func formatSnapshot(snap session.Snapshot) string {
	var parts []string

	if snap.Power != nil {
		if *snap.Power {
			parts = append(parts, "power="+color.GreenString("ON"))
		} else {
			parts = append(parts, "power="+color.RedString("OFF"))
		}
	}
	if snap.VolumeDb != nil {
		parts = append(parts, fmt.Sprintf("volume=%ddB", *snap.VolumeDb))
	}
	if name, ok := snap.SourceName(); ok {
		parts = append(parts, "source="+name)
	}
	if snap.Muted != nil {
		parts = append(parts, "mute="+onOffString(*snap.Muted))
	}
	if snap.SlaveRole != nil {
		parts = append(parts, "role="+strings.ToLower(roleString(*snap.SlaveRole)))
	}

	if len(parts) == 0 {
		return "(no state reported yet)"
	}
	return strings.Join(parts, " ")
}

func printFrames(frames []session.FrameRecord) {
	for _, f := range frames {
		fmt.Printf("        %s %s cmd=0x%02X payload=% X\n",
			f.When.Format("15:04:05.000"), f.Dir, f.Cmd, f.Payload)
	}
}
