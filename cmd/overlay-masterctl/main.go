// Copyright (c) 2018 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command overlay-masterctl is a small inspection CLI for
// overlay-masterd's state endpoint.
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var (
		masterAddr string
		moduleID   string
	)

	root := &cobra.Command{
		Use:   "overlay-masterctl",
		Short: "Inspect a running overlay-masterd instance",
	}
	root.PersistentFlags().StringVar(&masterAddr, "master", "http://localhost:5050", "overlay-masterd base URL")
	root.PersistentFlags().StringVar(&moduleID, "id", "overlay-master", "module id used in the master's state path")

	state := &cobra.Command{
		Use:   "state",
		Short: "Print the master's current overlay and agent state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printState(masterAddr, moduleID)
		},
	}
	root.AddCommand(state)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printState(masterAddr, moduleID string) error {
	resp, err := http.Get(masterAddr + "/" + moduleID + "/state")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("master returned %s: %s", resp.Status, body)
	}

	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
