package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	targetHost = "host"
	targetPico = "pico"
)

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the tofpanel CLI or the Pico firmware",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := cmd.Flag("target").Value.String()
			version := cmd.Flag("version").Value.String()
			switch target {
			case targetPico:
				return buildPico(version)
			case targetHost:
			default:
				return fmt.Errorf("unknown build target %q", target)
			}

			os := cmd.Flag("os").Value.String()
			arch := cmd.Flag("arch").Value.String()
			crossOs := cmd.Flag("cross-os").Value.String()
			crossArch := cmd.Flag("cross-arch").Value.String()

			// native builds run go build directly, others go through the build image
			if os == runtime.GOOS && arch == runtime.GOARCH {
				if crossOs != "" && crossArch != "" {
					os = crossOs
					arch = crossArch
				}
				return build.GoBuild("dist/tofpanel", "./cmd/tofpanel", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "github.com/mklimuk/tofpanel/config",
					// karalabe/hid needs cgo
					EnableCgo: true,
					Arch:      arch,
					OS:        os,
				})
			}

			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", os, arch), []string{"build", "--version", version, "--cross-os", crossOs, "--cross-arch", crossArch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   "gophertribe/gobuild:1.25-bookworm",
			})
		},
	}
	cmd.Flags().String("target", targetHost, "build target: host or pico")
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")

	return cmd
}

// buildPico compiles cmd/pico into a UF2 image with tinygo.
func buildPico(version string) error {
	if _, err := exec.LookPath("tinygo"); err != nil {
		return fmt.Errorf("tinygo not installed: %w", err)
	}
	out := "dist/tofpanel-pico.uf2"
	args := []string{
		"build",
		"-target=pico",
		"-ldflags", fmt.Sprintf("-X github.com/mklimuk/tofpanel/config.Version=%s", version),
		"-o", out,
		"./cmd/pico",
	}
	slog.Info("running tinygo", "args", args)
	tinygo := exec.Command("tinygo", args...)
	tinygo.Stdout = os.Stdout
	tinygo.Stderr = os.Stderr
	if err := tinygo.Run(); err != nil {
		return fmt.Errorf("tinygo build failed: %w", err)
	}
	slog.Info("firmware built", "output", out)
	return nil
}
