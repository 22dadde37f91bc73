package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lokmanguedri/motivex/internal/users"
	"github.com/lokmanguedri/motivex/internal/validation"
)

type adminFlags struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
	Phone    string `validate:"required"`
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var f adminFlags
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote and reset an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, hash, phone, err := f.prepare()
			if err != nil {
				return err
			}
			db, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := (&users.Repo{DB: db}).UpsertAdmin(cmd.Context(), email, hash, phone)
			if err != nil {
				return err
			}
			a.log.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("admin ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&f.Password, "password", "", "admin password, 8 to 72 characters")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "admin phone, Algerian mobile format")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

// prepare validates the flags and returns the normalized email, bcrypt hash
// and phone.
func (f adminFlags) prepare() (email, hash, phone string, err error) {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	if err := validation.Struct(&f); err != nil {
		return "", "", "", fmt.Errorf("create-admin: %w", err)
	}
	phone, err = users.NormalizePhone(f.Phone)
	if err != nil {
		return "", "", "", fmt.Errorf("create-admin: %w", err)
	}
	hash, err = users.HashPassword(f.Password)
	if err != nil {
		return "", "", "", err
	}
	return f.Email, hash, phone, nil
}
