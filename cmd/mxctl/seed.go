package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lokmanguedri/motivex/internal/catalog"
)

// defaultCategories is the starter tree of a motorcycle parts shop.
var defaultCategories = []catalog.CategoryInput{
	{NameFR: "Freinage", NameAR: "الفرامل"},
	{NameFR: "Moteur", NameAR: "المحرك"},
	{NameFR: "Filtration", NameAR: "الفلاتر"},
	{NameFR: "Transmission", NameAR: "ناقل الحركة"},
	{NameFR: "Électricité", NameAR: "الكهرباء"},
	{NameFR: "Pneus et jantes", NameAR: "الإطارات والعجلات"},
	{NameFR: "Suspension", NameAR: "نظام التعليق"},
	{NameFR: "Carrosserie", NameAR: "الهيكل"},
	{NameFR: "Huiles et entretien", NameAR: "الزيوت والصيانة"},
	{NameFR: "Équipement pilote", NameAR: "معدات السائق"},
}

type categoryCreator interface {
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (catalog.Category, error)
}

func newSeedCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-categories",
		Short: "Insert the default categories; existing slugs are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			created, err := seedCategories(cmd.Context(), &catalog.Repo{DB: db}, a.log)
			if err != nil {
				return err
			}
			a.log.Info().Int("created", created).Int("total", len(defaultCategories)).Msg("categories seeded")
			return nil
		},
	}
}

func seedCategories(ctx context.Context, repo categoryCreator, log zerolog.Logger) (int, error) {
	created := 0
	for _, in := range defaultCategories {
		if err := in.Normalize(); err != nil {
			return created, err
		}
		c, err := repo.CreateCategory(ctx, in)
		if errors.Is(err, catalog.ErrConflict) {
			log.Debug().Str("slug", in.Slug).Msg("category exists")
			continue
		}
		if err != nil {
			return created, err
		}
		log.Info().Str("slug", c.Slug).Msg("category created")
		created++
	}
	return created, nil
}
