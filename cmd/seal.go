package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verita-sec/verita/internal/cipher"
)

// readValueOrStdin returns the single positional argument, or stdin when
// the argument is "-".
func readValueOrStdin(args []string) ([]byte, error) {
	if args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}

var sealCmd = &cobra.Command{
	Use:   "seal <value|->",
	Short: "Encrypt a value under a secret",
	Long: `Encrypt a value under a secret and print the sealed envelope.
	Pass "-" to read the value from stdin. The output can only be opened
	with the same secret, via "verita unseal".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		compress, _ := cmd.Flags().GetBool("compress")
		if secret == "" {
			secret = os.Getenv("VERITA_SEAL_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("no secret given (use --secret or VERITA_SEAL_SECRET)")
		}

		value, err := readValueOrStdin(args)
		if err != nil {
			return err
		}

		sealed, err := cipher.Seal(value, secret, compress)
		if err != nil {
			return err
		}
		fmt.Println(sealed)
		return nil
	},
}

var unsealCmd = &cobra.Command{
	Use:   "unseal <envelope|->",
	Short: "Decrypt a sealed envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			secret = os.Getenv("VERITA_SEAL_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("no secret given (use --secret or VERITA_SEAL_SECRET)")
		}

		blob, err := readValueOrStdin(args)
		if err != nil {
			return err
		}

		plain, err := cipher.Open(string(blob), secret)
		if err != nil {
			log.Error().Msgf("%s envelope could not be opened", redCross)
			return err
		}
		_, _ = os.Stdout.Write(plain)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(unsealCmd)

	sealCmd.Flags().StringP("secret", "s", "", "encryption secret")
	sealCmd.Flags().Bool("compress", false, "gzip the value before encryption")
	unsealCmd.Flags().StringP("secret", "s", "", "decryption secret")
}
