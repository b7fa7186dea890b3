package commands

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jdollar/chomik/chomikuj"
	"github.com/jdollar/chomik/internal/config"
	"github.com/jdollar/chomik/internal/files"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// archive packs paths into a new archive inside outputDirectory and
// returns its path.
func archive(paths []string, outputDirectory string) (string, error) {
	if err := os.MkdirAll(outputDirectory, os.ModePerm); err != nil {
		return "", err
	}

	outputFileName := strconv.FormatInt(time.Now().UTC().UnixNano()/int64(time.Millisecond), 10) + files.ArchiveExt
	outputPath := filepath.Join(outputDirectory, outputFileName)

	tmpOut, err := ioutil.TempFile("", outputFileName)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpOut.Name())

	if err := files.CreateArchive(paths, tmpOut); err != nil {
		tmpOut.Close()
		return "", errors.Wrap(err, "creating archive")
	}
	if err := tmpOut.Close(); err != nil {
		return "", err
	}

	if err := files.Move(tmpOut.Name(), outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func backupCommandAction(conf config.Configuration, c *cli.Context) error {
	if c.IsSet(OUTPUT_DIRECTORY_FLAG) {
		conf.Backup.OutputDirectory = c.String(OUTPUT_DIRECTORY_FLAG)
	}
	if c.IsSet(FOLDER_FLAG) {
		conf.Backup.FolderID = c.Int64(FOLDER_FLAG)
	}
	if err := conf.ValidateBackup(); err != nil {
		return err
	}

	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("No files given to back up")
	}

	outputPath, err := archive(paths, conf.Backup.OutputDirectory)
	if err != nil {
		return err
	}
	logrus.WithField("archive", outputPath).Info("Created archive")

	if err := files.Prune(conf.Backup.OutputDirectory, conf.Backup.Limit); err != nil {
		return err
	}

	return withSession(c.Context, conf, func(ctx context.Context, client *chomikuj.Client) error {
		logrus.WithField("folder", conf.Backup.FolderID).Info("Uploading archive")
		if err := client.UploadFile(ctx, conf.Backup.FolderID, outputPath); err != nil {
			return errors.Wrap(err, "uploading archive")
		}
		logrus.Info("Finished backing up")
		return nil
	})
}

func NewBackupCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Archive files, keep a local copy and upload it",
		ArgsUsage: "PATH_OR_GLOB...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    OUTPUT_DIRECTORY_FLAG,
				Aliases: []string{"o"},
				Usage:   "Where local archives are kept",
			},
			&cli.Int64Flag{
				Name:    FOLDER_FLAG,
				Aliases: []string{"f"},
				Usage:   "Id of the folder archives are uploaded to",
			},
		},
		Action: func(c *cli.Context) error {
			return backupCommandAction(conf, c)
		},
	}
}
