package commands

import (
	"context"
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jdollar/chomik/chomikuj"
	"github.com/jdollar/chomik/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func searchCommandAction(conf config.Configuration, c *cli.Context) error {
	phrase, err := restArgs(c, 0, "search phrase")
	if err != nil {
		return err
	}

	optional := url.Values{}
	if t := c.String("type"); t != "" {
		optional.Set("FileType", t)
	}
	if ext := c.String("ext"); ext != "" {
		optional.Set("Extension", ext)
	}
	if user := c.String(USER_FLAG); user != "" {
		optional.Set("SearchOnAccount", "1")
		optional.Set("TargetAccountName", user)
	}
	if c.Bool("adult") {
		optional.Set("ShowAdultContent", "1")
	}

	found, err := newClient(conf).FindFiles(c.Context, phrase, optional, c.Int("page"))
	if err != nil {
		return errors.Wrapf(err, "searching for %q", phrase)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, file := range found {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", file.ID, humanize.Bytes(uint64(file.Size)), file.Name, file.Link)
	}
	return w.Flush()
}

func NewSearchCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search files on the whole site",
		ArgsUsage: "PHRASE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "page",
				Value: 1,
				Usage: "Results page, starting from 1",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Kind of file, e.g. music, video, image, document",
			},
			&cli.StringFlag{
				Name:  "ext",
				Usage: "File extension",
			},
			&cli.StringFlag{
				Name:    USER_FLAG,
				Aliases: []string{"u"},
				Usage:   "Only search this account",
			},
			&cli.BoolFlag{
				Name:  "adult",
				Usage: "Include adult content",
			},
		},
		Action: func(c *cli.Context) error {
			return searchCommandAction(conf, c)
		},
	}
}

func NewUploadCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload files into a folder",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:    FOLDER_FLAG,
				Aliases: []string{"f"},
				Usage:   "Id of the target folder, 0 for the root",
			},
		},
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return errors.New("missing file to upload")
			}
			folderID := c.Int64(FOLDER_FLAG)
			return withSession(c.Context, conf, func(ctx context.Context, client *chomikuj.Client) error {
				for _, path := range paths {
					logrus.WithField("file", path).Info("Uploading")
					if err := client.UploadFile(ctx, folderID, path); err != nil {
						return errors.Wrapf(err, "uploading %s", path)
					}
				}
				return nil
			})
		},
	}
}

type transferFunc func(client *chomikuj.Client, ctx context.Context, fileID, sourceFolderID, destinationFolderID int64) error

func newTransferCommand(conf config.Configuration, name, usage string, transfer transferFunc) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "FILE_ID SOURCE_FOLDER_ID DESTINATION_FOLDER_ID",
		Action: func(c *cli.Context) error {
			var ids [3]int64
			for i, what := range []string{"file id", "source folder id", "destination folder id"} {
				id, err := idArg(c, i, what)
				if err != nil {
					return err
				}
				ids[i] = id
			}
			return withSession(c.Context, conf, func(ctx context.Context, client *chomikuj.Client) error {
				return transfer(client, ctx, ids[0], ids[1], ids[2])
			})
		},
	}
}

func NewMoveCommand(conf config.Configuration) *cli.Command {
	return newTransferCommand(conf, "mv", "Move a file to another folder", (*chomikuj.Client).MoveFile)
}

func NewCopyCommand(conf config.Configuration) *cli.Command {
	return newTransferCommand(conf, "cp", "Copy a file to another folder", (*chomikuj.Client).CopyFile)
}

func NewRenameCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Change the name and description of a file",
		ArgsUsage: "FILE_ID NEW_NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "New description",
			},
		},
		Action: func(c *cli.Context) error {
			fileID, err := idArg(c, 0, "file id")
			if err != nil {
				return err
			}
			name, err := restArgs(c, 1, "new name")
			if err != nil {
				return err
			}
			return withSession(c.Context, conf, func(ctx context.Context, client *chomikuj.Client) error {
				return client.RenameFile(ctx, fileID, name, c.String("description"))
			})
		},
	}
}
