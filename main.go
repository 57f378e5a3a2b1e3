package main

import "github.com/jaaptech/nepalipay/cmd"

func main() {
	cmd.Execute()
}
