package commands

import (
	"github.com/jdollar/chomik/internal/config"
	"github.com/urfave/cli/v2"
)

// All returns every command of the binary.
func All(conf config.Configuration) []*cli.Command {
	return []*cli.Command{
		NewListCommand(conf),
		NewSearchCommand(conf),
		NewMkdirCommand(conf),
		NewRmdirCommand(conf),
		NewUploadCommand(conf),
		NewMoveCommand(conf),
		NewCopyCommand(conf),
		NewRenameCommand(conf),
		NewBackupCommand(conf),
	}
}
