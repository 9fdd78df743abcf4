// Command padsynthd runs the padsynth daemon in the foreground. It is the
// binary a service manager starts; interactive use goes through padsynth.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"padsynth/internal/config"
	"padsynth/internal/daemonrun"
)

func main() {
	flags := pflag.NewFlagSet("padsynthd", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Configuration file path")
	noHardware := flags.Bool("no-hardware", false, "Serve the console and synth without scanning GPIO")
	_ = flags.Parse(os.Args[1:])

	cfg, path, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "config %s not found; using defaults\n", path)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{NoHardware: *noHardware}); err != nil {
		log.Fatalf("padsynthd: %v", err)
	}
}
