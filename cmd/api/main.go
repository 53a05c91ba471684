package main

import (
	"os"

	"factortrader/cmd"
	"factortrader/internal/logger"

	_ "github.com/lib/pq"
)

func main() {
	log := logger.New()
	log.Infof("starting api, commit %s", os.Getenv("commit_hash"))

	apiHandler, secrets, err := cmd.InitializeDependencies()
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(apiHandler)

	err = apiHandler.StartApi(secrets.Port)
	if err != nil {
		log.Fatal(err)
	}
}
