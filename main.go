package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/noita-re/savetool/fastlz"
	"github.com/noita-re/savetool/modsettings"
	"github.com/noita-re/savetool/petri"
	"github.com/noita-re/savetool/pixelscene"
	"github.com/noita-re/savetool/streaminfo"
)

func isPossibleValue(expected []string, value string) bool {
	for _, v := range expected {
		if value == v {
			return true
		}
	}
	return false
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "savetool",
		Usage:     "decodes Noita save files",
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"SAVETOOL_LOG_LEVEL"}},
			&cli.StringFlag{Name: "format", Value: FormatYAML, Usage: fmt.Sprintf("Output format, one of %v", outputFormats), EnvVars: []string{"SAVETOOL_FORMAT"}},
			&cli.BoolFlag{Name: "raw", Value: false, Usage: "Treat input as an uncompressed payload, skipping container and compression detection", EnvVars: []string{"SAVETOOL_RAW"}},
		},
		Before: func(c *cli.Context) error {
			logLevel, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			logrus.SetLevel(logLevel)

			if !isPossibleValue(outputFormats, c.String("format")) {
				return fmt.Errorf("--format should be one of %v", outputFormats)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "pixel-scenes",
				Usage:     "Decode a world_pixel_scenes.bin file",
				ArgsUsage: "[path|-]",
				Action: func(c *cli.Context) error {
					payload, err := readPayload(c.Args().First(), c.Bool("raw"))
					if err != nil {
						return err
					}
					scenes, err := pixelscene.Decode(payload.Data)
					if err != nil {
						return err
					}
					logrus.WithFields(logrus.Fields{
						"pending": len(scenes.PendingList),
						"placed":  len(scenes.PlacedList),
					}).Debug("decoded pixel scenes")
					return WriteDocument(c.App.Writer, c.String("format"), scenes)
				},
			},
			{
				Name:      "stream-info",
				Usage:     "Decode a .stream_info file",
				ArgsUsage: "[path|-]",
				Action: func(c *cli.Context) error {
					payload, err := readPayload(c.Args().First(), c.Bool("raw"))
					if err != nil {
						return err
					}
					info, err := streaminfo.Decode(payload.Data)
					if err != nil {
						return err
					}
					logrus.WithFields(logrus.Fields{
						"seed":          info.Seed,
						"saved":         info.SaveAndQuitTime.String(),
						"loaded_chunks": info.LoadedChunks().Count(),
					}).Debug("decoded stream info")
					return WriteDocument(c.App.Writer, c.String("format"), info)
				},
			},
			{
				Name:      "mod-settings",
				Usage:     "Decode a mod_settings.bin file",
				ArgsUsage: "[path|-]",
				Action: func(c *cli.Context) error {
					payload, err := readPayload(c.Args().First(), c.Bool("raw"))
					if err != nil {
						return err
					}
					settings, err := modsettings.Decode(payload.Data)
					if err != nil {
						return err
					}
					if !settings.CountMatches() {
						logrus.WithFields(logrus.Fields{
							"expected": settings.ExpectedCount,
							"actual":   len(settings.Entries),
						}).Warn("mod settings entry count does not match its header")
					}
					return WriteDocument(c.App.Writer, c.String("format"), settings)
				},
			},
			{
				Name:      "png-petri",
				Usage:     "Decode a .png_petri world area file",
				ArgsUsage: "[path|-]",
				Action: func(c *cli.Context) error {
					payload, err := readPayload(c.Args().First(), c.Bool("raw"))
					if err != nil {
						return err
					}
					area, err := petri.Decode(payload.Data)
					if err != nil {
						return err
					}
					log := logrus.WithFields(logrus.Fields{
						"materials":       len(area.Materials),
						"custom_colors":   len(area.CustomColors),
						"physics_objects": len(area.PhysicsObjects),
					})
					if cells := area.CustomColorCells(); cells != len(area.CustomColors) {
						log.WithField("flagged_cells", cells).Warn("custom color count does not match flagged cells")
					}
					if area.TrailingBytes > 0 {
						log.WithField("trailing", humanize.Bytes(uint64(area.TrailingBytes))).Debug("left trailing bytes undecoded")
					}
					return WriteDocument(c.App.Writer, c.String("format"), area)
				},
			},
			{
				Name:      "world",
				Usage:     "Decode the metadata files of a save world directory",
				ArgsUsage: "<dir>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return fmt.Errorf("need a world directory to work with")
					}
					world, err := OpenSaveWorld(c.Args().First(), c.Bool("raw"))
					if err != nil {
						return err
					}
					return WriteDocument(c.App.Writer, c.String("format"), world)
				},
			},
			{
				Name:      "unpack",
				Usage:     "Strip the save container and write the raw payload",
				ArgsUsage: "[path|-]",
				Action: func(c *cli.Context) error {
					payload, err := readPayload(c.Args().First(), false)
					if err != nil {
						return err
					}
					if !payload.Packed {
						logrus.Warn("input carried no save container, writing it unchanged")
					}
					_, err = c.App.Writer.Write(payload.Data)
					return err
				},
			},
			{
				Name:      "pack",
				Usage:     "Compress a raw payload into a save container",
				ArgsUsage: "[path|-]",
				Action: func(c *cli.Context) error {
					payload, err := readPayload(c.Args().First(), true)
					if err != nil {
						return err
					}
					packed := fastlz.Pack(payload.Data)
					logrus.WithField("size", humanize.Bytes(uint64(len(packed)))).Debug("packed save")
					_, err = c.App.Writer.Write(packed)
					return pkgerrors.Wrap(err, "write packed save")
				},
			},
		},
	}
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetOutput(os.Stderr)

	err := newApp(os.Stdout).Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
