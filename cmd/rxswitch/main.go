// Command rxswitch runs the order book demo built on MultiSwitchScan.
package main

func main() {
	Execute()
}
