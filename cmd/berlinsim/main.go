// Command berlinsim drives the AIO engine against a simulated dHub.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gen2brain/aio"
)

var rootCmd = &cobra.Command{
	Use:   "berlinsim",
	Short: "Run Berlin AIO capture and playback streams on a simulated dHub",
	Long: `berlinsim builds an AIO card from a TOML board profile, feeds its streams with
synthesized device data or decoded audio files, and reports what the engine produced.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")

		aio.LevelVar().Set(aio.ParseLevel(level))
		aio.SetLogger(slog.New(aio.NewHandler(os.Stderr)))

		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the effective board profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(cmd)
		if err != nil {
			return err
		}

		data, err := p.Marshal()
		if err != nil {
			return err
		}

		fmt.Print(string(data))

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("profile", "p", "", "Board profile TOML file")
	rootCmd.PersistentFlags().String("variant", "", "SoC variant (as370, vs640, vs680), overrides the profile")
	rootCmd.PersistentFlags().Int("hub-depth", 0, "dHub command queue depth, overrides the profile")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("mic-mute", false, "Enable mic-mute detection, overrides the profile")

	rootCmd.AddCommand(profileCmd, captureCmd, playCmd, iecCmd, execCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadProfile reads the profile file, if any, and applies the flags set on the command line.
func loadProfile(cmd *cobra.Command) (aio.Profile, error) {
	p := aio.DefaultProfile()

	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		var err error

		p, err = aio.LoadProfile(path)
		if err != nil {
			return p, err
		}
	}

	var err error

	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}

		switch f.Name {
		case "variant":
			p.Variant = f.Value.String()
		case "hub-depth":
			p.HubDepth, err = strconv.Atoi(f.Value.String())
		case "mic-mute":
			p.MicMute, err = strconv.ParseBool(f.Value.String())
		case "log-level":
			p.LogLevel = f.Value.String()
		}
	})

	if err != nil {
		return p, err
	}

	return p, p.Validate()
}

// newCard builds a card on a fresh simulated dHub sized from the profile.
func newCard(cmd *cobra.Command) (*aio.Card, *aio.SimHub, error) {
	p, err := loadProfile(cmd)
	if err != nil {
		return nil, nil, err
	}

	v, err := aio.LookupVariant(p.Variant)
	if err != nil {
		return nil, nil, err
	}

	depth := v.HubDepth
	if p.HubDepth > 0 {
		depth = p.HubDepth
	}

	hub := aio.NewSimHub(depth)

	card, err := aio.NewCard(aio.CardConfig{Profile: p, Hub: hub})
	if err != nil {
		return nil, nil, err
	}

	return card, hub, nil
}

// parseFormat maps a short format name to a PCM format.
func parseFormat(s string) (aio.PcmFormat, error) {
	switch s {
	case "s16":
		return aio.SNDRV_PCM_FORMAT_S16_LE, nil
	case "s24":
		return aio.SNDRV_PCM_FORMAT_S24_LE, nil
	case "s24_3":
		return aio.SNDRV_PCM_FORMAT_S24_3LE, nil
	case "s32":
		return aio.SNDRV_PCM_FORMAT_S32_LE, nil
	default:
		return aio.SNDRV_PCM_FORMAT_INVALID, fmt.Errorf("unsupported format string: %s", s)
	}
}
