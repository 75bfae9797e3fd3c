package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Run reads commands until EOF or "exit". Handler errors are printed and the
// loop continues.
//
//	register  create an account
//	login     bind the console session to an account
//	whoami    show the bound account
//	edit      change email, name or password
//	delete    delete the bound account
//	logout    reset the session
//	help      list commands
//	exit      leave
func (a *App) Run(ctx context.Context) {
	a.println("accountctl (type 'help' for commands)")
	for {
		fmt.Fprintf(a.out, "accounts%s> ", prompt(a.status(ctx)))
		line, err := a.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			a.println()
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var cmdErr error
		switch parts[0] {
		case "help":
			if a.isLoggedIn() {
				a.println("Available commands: whoami, edit, delete, logout, help, exit")
			} else {
				a.println("Available commands: register, login, help, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "whoami":
			cmdErr = a.WhoAmI(ctx)
		case "edit":
			cmdErr = a.Edit(ctx)
		case "delete":
			cmdErr = a.Delete(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "exit", "quit":
			a.println("Bye!")
			return
		default:
			a.println("Unknown command:", parts[0])
		}
		if cmdErr != nil {
			a.println("error:", cmdErr)
		}
	}
}

func prompt(status string) string {
	if status == "" {
		return ""
	}
	return " (" + status + ")"
}
