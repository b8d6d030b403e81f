package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vovakirdan/wireboard-server/internal/proto"
)

// printFrame echoes the frames a terminal user cares about.
func printFrame(env proto.Envelope) {
	switch env.Event {
	case proto.EventChatMessage:
		var msg proto.Chat
		if json.Unmarshal(env.Data, &msg) == nil {
			fmt.Printf("[%s] %s: %s\n", msg.Time, msg.User, msg.Text)
		}
	case proto.EventUserList:
		var users []proto.User
		if json.Unmarshal(env.Data, &users) == nil {
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Username)
			}
			fmt.Printf("online: %s\n", strings.Join(names, ", "))
		}
	case proto.EventAssignUsername:
		var name string
		if json.Unmarshal(env.Data, &name) == nil {
			fmt.Printf("you are %s\n", name)
		}
	case proto.EventClearCanvas:
		fmt.Println("strokes cleared")
	}
}
