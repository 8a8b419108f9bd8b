package main

import "github.com/simongiter/ml-hub/internal/mlhub"

func main() {
	mlhub.Run()
}
