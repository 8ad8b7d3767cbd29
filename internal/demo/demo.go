// Package demo is the demonstration pair for the reflector: shenron grants a wish over TCP
// from the trigger port and pilaf asks for one. With woolong attached on pilaf's side the
// prompt shenron sends is answered before pilaf ever sees it.
package demo

import (
	"strconv"

	"firestige.xyz/woolong/internal/core/reflector"
)

const (
	// Summon is pilaf's opening message.
	Summon = "いでよ ドラゴン"
	// Prompt is shenron's answer to the first message. It is the reflector's default
	// signature.
	Prompt = reflector.DefaultSignature
	// Granted is shenron's answer to the second message, after which it hangs up.
	Granted = "たやすい願いだ"
)

// DefaultAddr is where shenron listens and pilaf connects.
var DefaultAddr = "127.0.0.1:" + strconv.Itoa(reflector.DefaultTriggerPort)

const readBufferLen = 1024
