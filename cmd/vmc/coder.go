package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ndlab/vmc/internal/auth"
	"github.com/ndlab/vmc/internal/models"
)

func newCoderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coder",
		Short: "Coder account management",
	}
	cmd.AddCommand(newCoderAddCmd())
	cmd.AddCommand(newCoderDisableCmd())
	cmd.AddCommand(newCoderPasswordCmd())
	return cmd
}

func newCoderAddCmd() *cobra.Command {
	var (
		configPath string
		username   string
		firstName  string
		lastName   string
		email      string
		admin      bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a coder account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoderAdd(cmd, configPath, models.Coder{
				Username:  username,
				FirstName: firstName,
				LastName:  lastName,
				Email:     email,
				IsAdmin:   admin,
				Active:    true,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&firstName, "first", "", "first name")
	cmd.Flags().StringVar(&lastName, "last", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	cmd.MarkFlagRequired("username")
	return cmd
}

func runCoderAdd(cmd *cobra.Command, configPath string, coder models.Coder) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	var existing models.Coder
	if err := gormDB.Where("username = ?", coder.Username).Find(&existing).Error; err != nil {
		return fmt.Errorf("look up coder %s: %w", coder.Username, err)
	}
	if existing.ID != 0 {
		return fmt.Errorf("coder %s already exists", coder.Username)
	}

	password, err := promptPassword(cmd)
	if err != nil {
		return err
	}
	coder.PasswordHash, err = auth.HashPassword(password)
	if err != nil {
		return err
	}

	if err := gormDB.Create(&coder).Error; err != nil {
		return fmt.Errorf("create coder %s: %w", coder.Username, err)
	}
	fmt.Fprintf(out, "Coder %s created (id %d)\n", coder.Username, coder.ID)
	return nil
}

func newCoderDisableCmd() *cobra.Command {
	var (
		configPath string
		username   string
	)

	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Deactivate a coder account",
		Long: `Deactivates the account so it can no longer authenticate. The
coder's completed work and records are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoderDisable(cmd, configPath, username)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.MarkFlagRequired("username")
	return cmd
}

func runCoderDisable(cmd *cobra.Command, configPath, username string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	res := gormDB.Model(&models.Coder{}).
		Where("username = ? AND active = ?", username, true).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("disable coder %s: %w", username, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("coder %s not found or already disabled", username)
	}
	fmt.Fprintf(out, "Coder %s disabled\n", username)
	return nil
}

func newCoderPasswordCmd() *cobra.Command {
	var (
		configPath string
		username   string
	)

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset a coder's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoderPassword(cmd, configPath, username)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.MarkFlagRequired("username")
	return cmd
}

func runCoderPassword(cmd *cobra.Command, configPath, username string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	password, err := promptPassword(cmd)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	res := gormDB.Model(&models.Coder{}).
		Where("username = ?", username).
		Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("update password for %s: %w", username, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("coder %s not found", username)
	}
	fmt.Fprintf(out, "Password updated for %s\n", username)
	return nil
}

// promptPassword reads the password twice without echo when stdin is a
// terminal, falling back to a plain line read otherwise (tests, pipes).
func promptPassword(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(out, "Confirm: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passwords do not match")
		}
		return string(first), nil
	}

	var password string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &password); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}
