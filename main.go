package main

import "invoice-service/cmd"

func main() {
	cmd.Execute()
}
