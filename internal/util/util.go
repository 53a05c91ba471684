package util

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

func Pprint(i interface{}) {
	bytes, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(bytes))
}

func DecimalPointer(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// NewTestDb connects to the database named by TEST_DATABASE_URL.
func NewTestDb() (*sql.DB, error) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		return nil, fmt.Errorf("TEST_DATABASE_URL not set")
	}
	dbConn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := dbConn.Ping(); err != nil {
		dbConn.Close()
		return nil, err
	}

	return dbConn, nil
}
