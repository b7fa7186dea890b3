package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/jdollar/chomik/chomikuj"
	"github.com/jdollar/chomik/internal/config"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func listCommandAction(conf config.Configuration, c *cli.Context) error {
	username := c.String(USER_FLAG)
	if username == "" {
		username = conf.Username
	}
	if username == "" {
		return errors.New("Missing username, pass --user")
	}

	var folderID int64
	if c.Args().Present() {
		id, err := idArg(c, 0, "folder id")
		if err != nil {
			return err
		}
		folderID = id
	}

	// folder trees are public, no need to log in
	folders, err := newClient(conf).Folders(c.Context, username, folderID)
	if err != nil {
		return errors.Wrapf(err, "listing folder %d of %s", folderID, username)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, folder := range folders {
		fmt.Fprintf(w, "%d\t%s\t%s\n", folder.ID, folder.Name, folder.Path)
	}
	return w.Flush()
}

func NewListCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List the subfolders of a folder",
		ArgsUsage: "[FOLDER_ID]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    USER_FLAG,
				Aliases: []string{"u"},
				Usage:   "Account to list, defaults to the configured one",
			},
		},
		Action: func(c *cli.Context) error {
			return listCommandAction(conf, c)
		},
	}
}

func NewMkdirCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "mkdir",
		Usage:     "Create a folder",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "parent",
				Usage: "Id of the parent folder, 0 for the root",
			},
			&cli.BoolFlag{
				Name:  "adult",
				Usage: "Mark the folder as adult content",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Protect the folder with a password",
			},
		},
		Action: func(c *cli.Context) error {
			name, err := restArgs(c, 0, "folder name")
			if err != nil {
				return err
			}
			var password *string
			if c.IsSet("password") {
				p := c.String("password")
				password = &p
			}
			return withSession(c.Context, conf, func(ctx context.Context, client *chomikuj.Client) error {
				return client.CreateFolder(ctx, name, c.Int64("parent"), c.Bool("adult"), password)
			})
		},
	}
}

func NewRmdirCommand(conf config.Configuration) *cli.Command {
	return &cli.Command{
		Name:      "rmdir",
		Usage:     "Remove a folder",
		ArgsUsage: "FOLDER_ID",
		Action: func(c *cli.Context) error {
			folderID, err := idArg(c, 0, "folder id")
			if err != nil {
				return err
			}
			return withSession(c.Context, conf, func(ctx context.Context, client *chomikuj.Client) error {
				return client.RemoveFolder(ctx, folderID)
			})
		},
	}
}
