package main

import "github.com/rasnes/dhis2-duckdb-framework/cmd"

func main() {
	cmd.Execute()
}
