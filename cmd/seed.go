package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/app"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/config"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

var (
	seedOrgName       string
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo organization, users, destinations, and knowledge",
	Long: `Seed creates a demo organization with an admin and a member account,
a handful of destinations, and a few knowledge base entries. Existing rows
are left untouched, so seed is safe to re-run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOrgName, "org", "demo", "organization name")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@demo.test", "admin account email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "change-me-now", "admin account password")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	org, err := a.Users.EnsureOrganization(ctx, seedOrgName)
	if err != nil {
		return err
	}
	logger.Info("organization ready", "org", org.Name, "id", org.ID)

	admin, err := seedUser(ctx, a, org.ID, seedAdminEmail, seedAdminPassword, auth.RoleAdmin, logger)
	if err != nil {
		return err
	}
	if _, err := seedUser(ctx, a, org.ID, "member@demo.test", seedAdminPassword, auth.RoleMember, logger); err != nil {
		return err
	}

	if err := seedDestinations(ctx, a, org.ID, admin.ID, logger); err != nil {
		return err
	}
	if err := seedKnowledge(ctx, a, org.ID, admin.ID, logger); err != nil {
		return err
	}

	logger.Info("seed complete", "org", org.Name)
	return nil
}

func seedUser(ctx context.Context, a *app.App, orgID uuid.UUID, email, password string, role auth.Role, logger log.Logger) (*auth.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := a.Users.CreateUser(ctx, orgID, email, hash, role)
	if errors.Is(err, auth.ErrUserExists) {
		logger.Info("user already exists, skipping", "email", email)
		return a.Users.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("user created", "email", email, "role", role)
	return u, nil
}

func seedDestinations(ctx context.Context, a *app.App, orgID, createdBy uuid.UUID, logger log.Logger) error {
	inputs := []destination.Input{
		{
			Name:        "Tokyo",
			Country:     "Japan",
			Description: "Dense, layered, endlessly walkable. Spring and autumn are the sweet spots.",
			Tags:        []string{"city", "food", "museums"},
		},
		{
			Name:        "Kyoto",
			Country:     "Japan",
			Description: "Temples, gardens, and quiet back streets. Book lodging early for leaf season.",
			Tags:        []string{"culture", "temples", "kid_friendly"},
		},
		{
			Name:        "Lisbon",
			Country:     "Portugal",
			Description: "Hills, tiles, and pastel de nata. Shoulder season keeps prices sane.",
			Tags:        []string{"city", "coastal", "budget"},
		},
	}
	for _, in := range inputs {
		_, err := a.Destinations.Create(ctx, orgID, createdBy, in)
		if errors.Is(err, destination.ErrDuplicateName) {
			logger.Info("destination already exists, skipping", "name", in.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding destination %q: %w", in.Name, err)
		}
		logger.Info("destination created", "name", in.Name)
	}
	return nil
}

func seedKnowledge(ctx context.Context, a *app.App, orgID, ownerID uuid.UUID, logger log.Logger) error {
	notes := []struct {
		title string
		text  string
	}{
		{
			title: "Tokyo travel notes",
			text: "Tokyo works best as a set of neighborhoods rather than a single itinerary. " +
				"Base yourself near a Yamanote line station. The national museums in Ueno " +
				"cluster within a short walk of each other, which makes them an easy rainy-day " +
				"plan with children. Avoid flights that land after 22:00; the last airport " +
				"trains leave around 23:00 and taxis into the city are expensive.",
		},
		{
			title: "Traveling with kids",
			text: "For family trips, prefer lodging with more than one room and a kitchenette. " +
				"Plan one anchor activity per day and leave afternoons loose. Museums with " +
				"hands-on exhibits hold attention far longer than galleries. Budget roughly " +
				"35 percent of the trip for lodging and keep a daily cash buffer for food.",
		},
	}
	for _, n := range notes {
		_, err := a.Ingestor.IngestText(ctx, orgID, ownerID, n.title, n.text, knowledge.ScopeOrgPublic)
		if err != nil {
			return fmt.Errorf("seeding knowledge %q: %w", n.title, err)
		}
		logger.Info("knowledge entry ingested", "title", n.title)
	}
	return nil
}
