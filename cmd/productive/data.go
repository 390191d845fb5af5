package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"productive-cloud/internal/domain"

	"github.com/spf13/cobra"
)

// remoteDataType checks there is a backend to talk to and that s names a
// dataset.
func (a *app) remoteDataType(s string) (domain.DataType, error) {
	if err := a.requireBackend(); err != nil {
		return "", err
	}
	dt := domain.DataType(s)
	if !dt.Valid() {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return dt, nil
}

func dataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect or remove the cloud copy of a dataset",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <dataType>",
		Short: "Print the server's copy of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := a.remoteDataType(args[0])
			if err != nil {
				return err
			}
			entry, ok, err := a.client.Get(cmd.Context(), dt)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("No %s data on the server.\n", dt)
				return nil
			}

			var out bytes.Buffer
			if err := json.Indent(&out, entry.Data, "", "  "); err != nil {
				out.Reset()
				out.Write(entry.Data)
			}
			fmt.Printf("%s  version %d, modified %s\n%s\n",
				dt, entry.Version, entry.LastModified.Local().Format(time.RFC1123), out.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <dataType>",
		Short: "Delete the server's copy; local data is kept and uploaded on the next sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := a.remoteDataType(args[0])
			if err != nil {
				return err
			}
			if err := a.client.Delete(cmd.Context(), dt); err != nil {
				return err
			}
			fmt.Printf("Deleted %s from the server.\n", dt)
			return nil
		},
	})

	return cmd
}
