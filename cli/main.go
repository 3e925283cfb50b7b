// Command sqlsrv translates and runs portable SQL on Microsoft SQL Server.
package main

import (
	"os"

	"github.com/satishbabariya/sqlsrv-go/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
