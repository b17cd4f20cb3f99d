package main

import (
	"fmt"
	"os"

	"formflow-backend/cmd/formflow/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
