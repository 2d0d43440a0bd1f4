package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// inspectCmd decodes a token WITHOUT verifying its signature. It is a
// debugging aid, never an authorization decision.
var inspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Decode a bearer token without verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claims := jwt.MapClaims{}
		parsed, _, err := jwt.NewParser().ParseUnverified(args[0], claims)
		if err != nil {
			return fmt.Errorf("decoding token: %w", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Claim", "Value"})

		if kid, ok := parsed.Header["kid"]; ok {
			t.AppendRow(table.Row{"(header) kid", kid})
		}
		t.AppendRow(table.Row{"(header) alg", parsed.Header["alg"]})

		names := make([]string, 0, len(claims))
		for name := range claims {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value := fmt.Sprintf("%v", claims[name])
			if name == "exp" || name == "iat" {
				if num, ok := claims[name].(float64); ok {
					at := time.Unix(int64(num), 0)
					value = at.Format(time.RFC3339)
					if name == "exp" && at.Before(time.Now()) {
						value = fmt.Sprintf("%s %s", redCross, color.RedString(value+" (expired)"))
					}
				}
			}
			t.AppendRow(table.Row{color.New(color.Bold).Sprint(name), truncate(value, 80)})
		}

		applyTableFormat(t)
		t.Render()

		fmt.Println()
		fmt.Println(color.YellowString("note: claims are shown unverified"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
