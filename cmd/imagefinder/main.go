// Package main provides the entry point for the imagefinder CLI.
//
// imagefinder crawls a website from a seed URL, staying under that URL,
// and lists every image and favicon it finds.
//
// Usage:
//
//	imagefinder crawl <seed-url>...
//	imagefinder serve --addr :8080
//	imagefinder history <seed-url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
