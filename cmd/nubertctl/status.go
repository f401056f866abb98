package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/session"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query and print the device state",
	Long: `Connect to the device, query its state once, print it and disconnect.

Fields the device did not report are shown as unknown.`,
	RunE: runStatus,
}

func init() {
	addDeviceFlags(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print state as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
		if err := sess.Refresh(ctx); err != nil {
			return err
		}

		snap := sess.State()
		if statusJSON {
			return printStatusJSON(os.Stdout, sess, snap)
		}
		return printStatusTable(os.Stdout, sess, snap)
	})
}

func printStatusTable(out io.Writer, sess *session.Session, snap session.Snapshot) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Device:\t%s\n", sess.Name())
	fmt.Fprintf(w, "Address:\t%s\n", sess.Address())
	if snap.Profile != nil {
		fmt.Fprintf(w, "Model:\t%s\n", snap.Profile.Model())
	}

	power := "unknown"
	if snap.Power != nil {
		if *snap.Power {
			power = color.GreenString("ON")
		} else {
			power = color.RedString("OFF")
		}
	}
	fmt.Fprintf(w, "Power:\t%s\n", power)

	if snap.VolumeDb != nil {
		fmt.Fprintf(w, "Volume:\t%d dB\n", *snap.VolumeDb)
	} else {
		fmt.Fprintf(w, "Volume:\tunknown\n")
	}

	if name, ok := snap.SourceName(); ok {
		fmt.Fprintf(w, "Source:\t%s\n", name)
	} else {
		fmt.Fprintf(w, "Source:\tunknown\n")
	}

	mute := "unknown"
	if snap.Muted != nil {
		mute = onOffString(*snap.Muted)
	}
	fmt.Fprintf(w, "Mute:\t%s\n", mute)

	if snap.SlaveRole != nil {
		fmt.Fprintf(w, "Role:\t%s\n", roleString(*snap.SlaveRole))
	}

	return w.Flush()
}

// statusDocument is the --json shape; pointers keep unreported fields out of
// the output.
type statusDocument struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Model    string  `json:"model,omitempty"`
	Power    *string `json:"power,omitempty"`
	VolumeDb *int    `json:"volume_db,omitempty"`
	Source   *string `json:"source,omitempty"`
	Mute     *string `json:"mute,omitempty"`
	Role     *string `json:"role,omitempty"`
}

func printStatusJSON(out io.Writer, sess *session.Session, snap session.Snapshot) error {
	doc := statusDocument{
		Name:     sess.Name(),
		Address:  sess.Address(),
		VolumeDb: snap.VolumeDb,
	}
	if snap.Profile != nil {
		doc.Model = snap.Profile.Model()
	}
	if snap.Power != nil {
		s := onOffString(*snap.Power)
		doc.Power = &s
	}
	if name, ok := snap.SourceName(); ok {
		doc.Source = &name
	}
	if snap.Muted != nil {
		s := onOffString(*snap.Muted)
		doc.Mute = &s
	}
	if snap.SlaveRole != nil {
		s := roleString(*snap.SlaveRole)
		doc.Role = &s
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func onOffString(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func roleString(slave bool) string {
	if slave {
		return "Slave"
	}
	return "Master"
}
