package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newApikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Generate an API key for a server exposed beyond localhost",
	}
	cmd.AddCommand(newApikeyGenerateCmd())
	return cmd
}

func newApikeyGenerateCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random API key and print how to use it",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			key := hex.EncodeToString(b)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, titleStyle.Render("API key")+" (store it somewhere safe):")
			_, _ = fmt.Fprintln(out, "  "+key)
			_, _ = fmt.Fprintln(out)

			if envFile == "" {
				_, _ = fmt.Fprintln(out, "Server: export ABETO_API_KEY="+key)
				_, _ = fmt.Fprintln(out, "        or set api_key in <home>/config.yaml")
				_, _ = fmt.Fprintln(out, "Clients: send X-API-Key: <key> (the CLI uses --api-key or ABETO_API_KEY)")
				return nil
			}
			f, err := os.OpenFile(envFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("write %s: %w", envFile, err)
			}
			if _, err := f.WriteString("ABETO_API_KEY=" + key + "\n"); err != nil {
				_ = f.Close()
				return fmt.Errorf("write %s: %w", envFile, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Appended ABETO_API_KEY to %s\n", envFile)
			_, _ = fmt.Fprintln(out, "Start the server with: abeto start --env-file "+envFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Append ABETO_API_KEY to this file (e.g. .env)")
	return cmd
}
