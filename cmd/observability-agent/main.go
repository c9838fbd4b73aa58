// Command observability-agent is the CLI entrypoint: analyze/scan a repo's
// declarative platform into an observability plan, or validate a live
// cluster, via the bounded tool-calling agent driver.
package main

func main() {
	Execute()
}
