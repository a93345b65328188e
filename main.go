package main

import (
	"fmt"

	"github.com/h3ndrk/roomhost/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
