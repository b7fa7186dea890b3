package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/jdollar/chomik/chomikuj"
	"github.com/jdollar/chomik/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	FOLDER_FLAG           = "folder"
	USER_FLAG             = "user"
	OUTPUT_DIRECTORY_FLAG = "outputDirectory"
)

func newClient(conf config.Configuration) *chomikuj.Client {
	return chomikuj.New(
		chomikuj.WithBaseURL(conf.BaseURL),
		chomikuj.WithHTTPClient(chomikuj.NewHTTPClient(conf.Timeout)),
		chomikuj.WithLogger(logrus.StandardLogger()),
	)
}

// withSession logs in with the configured account, runs fn and logs out
// again whatever fn returned.
func withSession(ctx context.Context, conf config.Configuration, fn func(context.Context, *chomikuj.Client) error) (err error) {
	if err := conf.Validate(); err != nil {
		return err
	}

	client := newClient(conf)
	if err := client.Login(ctx, conf.Username, conf.Password); err != nil {
		return errors.Wrapf(err, "logging in as %s", conf.Username)
	}
	logrus.WithField("username", conf.Username).Debug("Session started")

	defer func() {
		logoutErr := client.Logout(ctx)
		if logoutErr != nil && err == nil {
			err = errors.Wrap(logoutErr, "logging out")
		}
	}()

	return fn(ctx, client)
}

// idArg parses the i-th positional argument as an id.
func idArg(c *cli.Context, i int, name string) (int64, error) {
	if c.Args().Len() <= i {
		return 0, errors.Errorf("missing %s", name)
	}
	id, err := strconv.ParseInt(c.Args().Get(i), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad %s %q", name, c.Args().Get(i))
	}
	return id, nil
}

// restArgs joins the positional arguments from i on with spaces.
func restArgs(c *cli.Context, i int, name string) (string, error) {
	args := c.Args().Slice()
	if len(args) <= i {
		return "", errors.Errorf("missing %s", name)
	}
	return strings.Join(args[i:], " "), nil
}
