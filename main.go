package main

import "github.com/ValentinKolb/uBridge/cmd"

func main() {
	cmd.Execute()
}
