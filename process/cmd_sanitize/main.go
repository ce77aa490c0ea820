package main

import "siphp/process/sanitize"

func main() {
	sanitize.Run()
}
