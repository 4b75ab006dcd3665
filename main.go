package main

import "github.com/hoanglv/swapstation-management/cmd"

func main() {
	cmd.Execute()
}
