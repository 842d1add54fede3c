package main

import "github.com/MeKo-Tech/colorboost/internal/cmd"

func main() {
	cmd.Execute()
}
