package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"factortrader/api"
	integration_tests "factortrader/integration-tests"
	"factortrader/internal/app"
	"factortrader/internal/parser"
	"factortrader/internal/repository"
	l1_service "factortrader/internal/service/l1"
	l2_service "factortrader/internal/service/l2"
	"factortrader/internal/util"

	_ "github.com/lib/pq"
)

func CloseDependencies(handler *api.ApiHandler) {
	err := handler.Db.Close()
	if err != nil {
		log.Fatalf("failed to close db: %v", err)
	}
}

// InitializeDependencies loads secrets and wires every repository and
// service. The returned handler owns the db connection.
func InitializeDependencies() (*api.ApiHandler, *util.Secrets, error) {
	secrets, err := util.LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	dbConn, err := sql.Open("postgres", secrets.Db.ToConnectionStr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	factorRepository := repository.NewFactorRepository(dbConn)
	allocationRepository := repository.NewAllocationRepository(dbConn)
	alpacaRepository := repository.NewAlpacaRepository(repository.AlpacaConfig{
		ApiKey:     secrets.Alpaca.ApiKey,
		ApiSecret:  secrets.Alpaca.ApiSecret,
		Endpoint:   secrets.Alpaca.Endpoint,
		Timeout:    secrets.Alpaca.Timeout(),
		RetryLimit: secrets.Alpaca.RetryLimit,
	})
	if strings.EqualFold(os.Getenv("ALPHA_ENV"), "test") {
		// never touch a real account from the test env
		alpacaRepository = integration_tests.DefaultSimulatedAlpacaRepository()
	}

	factorService := l1_service.NewFactorService(factorRepository, allocationRepository)
	allocatorService := l2_service.NewAllocatorService(factorService, alpacaRepository)
	commandApp := app.NewCommandApp(
		parser.NewCommandParser(factorService),
		factorService,
		allocatorService,
		alpacaRepository,
	)

	apiHandler := &api.ApiHandler{
		Db:            dbConn,
		CommandApp:    commandApp,
		FactorService: factorService,
		JwtSecret:     secrets.Jwt,
	}

	return apiHandler, secrets, nil
}
