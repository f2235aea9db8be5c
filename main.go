package main

import "cuebase/cmd"

func main() {
	cmd.Execute()
}
