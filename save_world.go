package main

import (
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/noita-re/savetool/pixelscene"
	"github.com/noita-re/savetool/streaminfo"
)

const pixelScenesFileName = "world_pixel_scenes.bin"
const streamInfoFileName = ".stream_info"

// SaveWorld holds the decoded metadata files of one save's world directory. Either may be nil if the directory
// does not contain it.
type SaveWorld struct {
	StreamInfo  *streaminfo.File `yaml:"stream_info,omitempty" json:"stream_info,omitempty"`
	PixelScenes *pixelscene.File `yaml:"pixel_scenes,omitempty" json:"pixel_scenes,omitempty"`
}

// OpenSaveWorld decodes the metadata files found in root, usually save00/world. Both files are decoded in parallel;
// the first failure is returned.
func OpenSaveWorld(root string, raw bool) (*SaveWorld, error) {
	files, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	world := &SaveWorld{}
	var group errgroup.Group
	for _, entry := range files {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())

		switch entry.Name() {
		case streamInfoFileName:
			logrus.WithField("file", path).Info("discovered stream info")
			group.Go(func() error {
				info, err := readStreamInfo(path, raw)
				if err != nil {
					return err
				}
				world.StreamInfo = info
				return nil
			})
		case pixelScenesFileName:
			logrus.WithField("file", path).Info("discovered pixel scenes")
			group.Go(func() error {
				scenes, err := readPixelScenes(path, raw)
				if err != nil {
					return err
				}
				world.PixelScenes = scenes
				return nil
			})
		}
	}

	if err = group.Wait(); err != nil {
		return nil, err
	}
	if world.StreamInfo == nil && world.PixelScenes == nil {
		return nil, pkgerrors.Errorf("no %s or %s in %s", streamInfoFileName, pixelScenesFileName, root)
	}
	return world, nil
}

func readPayload(path string, raw bool) (payload SavePayload, err error) {
	save, err := OpenSave(path, raw)
	if err != nil {
		return
	}
	defer save.Close()
	return save.ReadPayload()
}

func readStreamInfo(path string, raw bool) (*streaminfo.File, error) {
	payload, err := readPayload(path, raw)
	if err != nil {
		return nil, err
	}
	info, err := streaminfo.Decode(payload.Data)
	if err != nil {
		return nil, pkgerrors.WithMessagef(err, "could not decode %s", path)
	}

	logrus.WithFields(logrus.Fields{
		"file":          path,
		"seed":          info.Seed,
		"seconds":       info.SecondsPlayed,
		"saved":         info.SaveAndQuitTime.String(),
		"chunks":        len(info.Chunks),
		"loaded_chunks": info.LoadedChunks().Count(),
	}).Info("decoded stream info")
	return info, nil
}

func readPixelScenes(path string, raw bool) (*pixelscene.File, error) {
	payload, err := readPayload(path, raw)
	if err != nil {
		return nil, err
	}
	scenes, err := pixelscene.Decode(payload.Data)
	if err != nil {
		return nil, pkgerrors.WithMessagef(err, "could not decode %s", path)
	}

	logrus.WithFields(logrus.Fields{
		"file":              path,
		"pending":           len(scenes.PendingList),
		"placed":            len(scenes.PlacedList),
		"background_images": len(scenes.BackgroundImages),
	}).Info("decoded pixel scenes")
	return scenes, nil
}
