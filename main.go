package main

import "github.com/adsecurecheck/adaudit/cmd"

func main() {
	cmd.Execute()
}
