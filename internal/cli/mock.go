package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reveris/aetherwatch/pkg/server"
)

var (
	mockAddr string
	mockSeed bool
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve an in-memory replay of the analysis service API",
	Long: `Mock runs the REST surface the client consumes against an in-memory
store, for developing the dashboard without a running AetherFrame
instance. With --seed the store starts with a small demo dataset.`,
	Example: `  aetherwatch mock --addr :8000 --seed`,
	RunE:    runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", ":8000", "listen address")
	mockCmd.Flags().BoolVar(&mockSeed, "seed", true, "start with demo data")
}

func runMock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	if !cfg.Verbose && !verbose {
		// The mock is a foreground dev tool; always log requests.
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
	}
	defer logger.Sync()

	store := server.NewStore()
	if mockSeed {
		server.Seed(store)
	}

	srv := &http.Server{
		Addr:    mockAddr,
		Handler: server.New(store, logger).Router(),
	}

	logger.Info("mock analysis service listening", zap.String("addr", mockAddr), zap.Bool("seeded", mockSeed))

	go func() {
		<-cmd.Context().Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock server failed: %w", err)
	}
	return nil
}
