// Command sandbox-init confines itself and execs one sandboxed command.
package main

import "gradebox/internal/executor/sandbox/initproc"

func main() {
	initproc.Main()
}
