package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec [command]...",
	Short: "Run debug command lines against a card",
	Long: `exec runs each argument as one "name N integers" command line against a fresh card,
or reads lines from standard input when no argument is given. "help" lists the commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		card, _, err := newCard(cmd)
		if err != nil {
			return err
		}
		defer card.Close()

		tbl := card.Commands()

		run := func(line string) error {
			if strings.TrimSpace(line) == "help" {
				for _, name := range tbl.Names() {
					fmt.Println(tbl.Help(name))
				}

				return nil
			}

			return tbl.Exec(line)
		}

		if len(args) > 0 {
			for _, line := range args {
				if err := run(line); err != nil {
					return err
				}
			}
		} else {
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				if err := run(sc.Text()); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}

			if err := sc.Err(); err != nil {
				return err
			}
		}

		fmt.Print(card)

		return nil
	},
}
