package ws

import (
	"errors"
	"testing"

	"huddle/internal/models"
)

// threeUsers wires alice, bob, and carol into a hub whose group 7 has all
// three as members.
func threeUsers(t *testing.T, relayRaw bool) (*Hub, *Session, *fakeConn, *Session, *fakeConn, *Session, *fakeConn) {
	t.Helper()

	oracle := &stubOracle{
		members: map[int64][]int64{7: {1, 2, 3}},
		groups:  map[int64][]*models.Group{},
	}
	h := NewHub(oracle, relayRaw)

	alice, aliceConn := connectUser(t, h, 1, "alice")
	bob, bobConn := connectUser(t, h, 2, "bob")
	carol, carolConn := connectUser(t, h, 3, "carol")

	return h, alice, aliceConn, bob, bobConn, carol, carolConn
}

func TestRouteDirectCallRelay(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, carolConn := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"call_offer","to":2,"sdp":"offer-blob"}`))

	frames := bobConn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("bob got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f["type"] != "call_offer" || f["from"] != float64(1) || f["sdp"] != "offer-blob" {
		t.Fatalf("unexpected relayed frame: %v", f)
	}
	if f["sender_username"] != "alice" {
		t.Fatalf("sender_username = %v, want alice", f["sender_username"])
	}

	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
	if n := len(aliceConn.frames(t)); n != 0 {
		t.Fatalf("alice got %d frames, want 0", n)
	}
}

func TestRouteDirectCallRequiresTarget(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"call_ended"}`))

	errs := aliceConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("alice got %d error frames, want 1", len(errs))
	}
	want := "call_ended requires a 'to' or 'targetUserId' field specifying the target user ID."
	if errs[0]["detail"] != want {
		t.Fatalf("detail = %q, want %q", errs[0]["detail"], want)
	}
	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0", n)
	}
}

func TestRouteDirectCallInvalidTarget(t *testing.T) {
	h, alice, aliceConn, _, _, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"call_offer","to":"abc"}`))

	errs := aliceConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("alice got %d error frames, want 1", len(errs))
	}
	if errs[0]["detail"] != `Invalid target user_id: abc` {
		t.Fatalf("detail = %q", errs[0]["detail"])
	}
}

func TestRouteDirectCallTargetFallbackField(t *testing.T) {
	h, alice, _, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"call_answer","targetUserId":"2","sdp":"answer"}`))

	frames := bobConn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("bob got %d frames, want 1", len(frames))
	}
	if frames[0]["type"] != "call_answer" || frames[0]["from"] != float64(1) {
		t.Fatalf("unexpected frame: %v", frames[0])
	}
}

func TestRouteCandidateWithoutGroupIsDirect(t *testing.T) {
	h, alice, _, _, bobConn, _, carolConn := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"candidate","to":2,"candidate":{"sdpMid":"0"}}`))

	if n := len(bobConn.frames(t)); n != 1 {
		t.Fatalf("bob got %d frames, want 1", n)
	}
	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteCandidateWithGroupGoesToParticipants(t *testing.T) {
	h, alice, _, _, bobConn, _, carolConn := threeUsers(t, true)
	seedCall(h, 7, false, 1, 2)

	h.Route(alice, []byte(`{"type":"candidate","groupId":7,"candidate":{"sdpMid":"0"}}`))

	frames := bobConn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("bob got %d frames, want 1", len(frames))
	}
	if frames[0]["groupId"] != float64(7) || frames[0]["userId"] != float64(1) {
		t.Fatalf("expected stamped group frame, got %v", frames[0])
	}

	// Carol is a group member but not a call participant.
	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteGroupFrameRequiresGroupID(t *testing.T) {
	h, alice, aliceConn, _, _, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"group-call-start"}`))

	errs := aliceConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("alice got %d error frames, want 1", len(errs))
	}
	if errs[0]["detail"] != "group-call-start requires a 'groupId' field." {
		t.Fatalf("detail = %q", errs[0]["detail"])
	}
}

func TestRouteGroupFrameRejectsNonMember(t *testing.T) {
	h, _, _, _, bobConn, carol, carolConn := threeUsers(t, true)

	h.Route(carol, []byte(`{"type":"group-call-start","groupId":9}`))

	errs := carolConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("carol got %d error frames, want 1", len(errs))
	}
	if errs[0]["detail"] != "You are not a member of group 9." {
		t.Fatalf("detail = %q", errs[0]["detail"])
	}
	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0", n)
	}
}

func TestRouteGroupMembershipLookupFailure(t *testing.T) {
	oracle := &stubOracle{memberErr: errors.New("db gone")}
	h := NewHub(oracle, true)
	alice, aliceConn := connectUser(t, h, 1, "alice")

	h.Route(alice, []byte(`{"type":"group-call-start","groupId":7}`))

	errs := aliceConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("alice got %d error frames, want 1", len(errs))
	}
	if errs[0]["detail"] != "Error processing your message: checking group membership: db gone" {
		t.Fatalf("detail = %q", errs[0]["detail"])
	}
}

func TestRouteGroupCallStart(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, carolConn := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"group-call-start","groupId":7,"isVideo":true,"recipients":[2,3]}`))

	for name, conn := range map[string]*fakeConn{"bob": bobConn, "carol": carolConn} {
		frames := conn.framesOfType(t, MsgTypeGroupCallStart)
		if len(frames) != 1 {
			t.Fatalf("%s got %d start frames, want 1", name, len(frames))
		}
		f := frames[0]
		if f["userId"] != float64(1) || f["groupId"] != float64(7) || f["sender_username"] != "alice" {
			t.Fatalf("%s got unexpected start frame: %v", name, f)
		}
		if f["isVideo"] != true {
			t.Fatalf("%s isVideo = %v, want true", name, f["isVideo"])
		}
		recipients, ok := f["recipients"].([]any)
		if !ok || len(recipients) != 2 {
			t.Fatalf("%s recipients = %v, want two entries", name, f["recipients"])
		}
	}

	if n := len(aliceConn.frames(t)); n != 0 {
		t.Fatalf("alice got %d frames, want 0", n)
	}

	h.mu.Lock()
	roster := h.calls.Participants(7)
	video := h.calls.IsVideo(7)
	h.mu.Unlock()
	if len(roster) != 1 || roster[0] != 1 {
		t.Fatalf("roster = %v, want [1]", roster)
	}
	if !video {
		t.Fatal("expected a video call")
	}
}

func TestRouteGroupCallStartDefaultsOmittedFields(t *testing.T) {
	h, alice, _, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"group-call-start","groupId":7}`))

	frames := bobConn.framesOfType(t, MsgTypeGroupCallStart)
	if len(frames) != 1 {
		t.Fatalf("bob got %d start frames, want 1", len(frames))
	}
	if frames[0]["isVideo"] != false {
		t.Fatalf("isVideo = %v, want false", frames[0]["isVideo"])
	}
	recipients, ok := frames[0]["recipients"].([]any)
	if !ok || len(recipients) != 0 {
		t.Fatalf("recipients = %v, want empty list", frames[0]["recipients"])
	}
}

func TestRouteGroupCallJoin(t *testing.T) {
	h, _, aliceConn, bob, bobConn, _, _ := threeUsers(t, true)
	seedCall(h, 7, true, 1)

	h.Route(bob, []byte(`{"type":"group-call-join","groupId":7}`))

	frames := aliceConn.framesOfType(t, MsgTypeGroupCallJoin)
	if len(frames) != 1 {
		t.Fatalf("alice got %d join frames, want 1", len(frames))
	}
	f := frames[0]
	if f["userId"] != float64(2) || f["groupId"] != float64(7) {
		t.Fatalf("unexpected join frame: %v", f)
	}

	participants, ok := f["activeParticipants"].([]any)
	if !ok || len(participants) != 2 {
		t.Fatalf("activeParticipants = %v, want two entries", f["activeParticipants"])
	}
	if participants[0] != float64(1) || participants[1] != float64(2) {
		t.Fatalf("activeParticipants order = %v, want [1 2]", participants)
	}

	// joinTime is relayed as an explicit null when the client omitted it.
	jt, present := f["joinTime"]
	if !present || jt != nil {
		t.Fatalf("joinTime = %v (present=%v), want explicit null", jt, present)
	}

	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0", n)
	}
}

func TestRouteGroupCallLeaveWithRemaining(t *testing.T) {
	h, _, aliceConn, bob, bobConn, _, carolConn := threeUsers(t, true)
	seedCall(h, 7, false, 1, 2)

	h.Route(bob, []byte(`{"type":"group-call-leave","groupId":7}`))

	frames := aliceConn.framesOfType(t, MsgTypeGroupCallLeave)
	if len(frames) != 1 {
		t.Fatalf("alice got %d leave frames, want 1", len(frames))
	}
	if frames[0]["userId"] != float64(2) {
		t.Fatalf("leave frame userId = %v, want 2", frames[0]["userId"])
	}

	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0", n)
	}
	// Carol is a member but not a participant; leaves go to participants only.
	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteGroupCallLeaveLastEndsCall(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, carolConn := threeUsers(t, true)
	seedCall(h, 7, false, 1)

	h.Route(alice, []byte(`{"type":"group-call-leave","groupId":7}`))

	// The end notice reaches every connected member, the leaver included.
	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn, "carol": carolConn} {
		frames := conn.framesOfType(t, MsgTypeGroupCallEnded)
		if len(frames) != 1 {
			t.Fatalf("%s got %d ended frames, want 1", name, len(frames))
		}
		if frames[0]["reason"] != "Last participant left the call" {
			t.Fatalf("%s reason = %q", name, frames[0]["reason"])
		}
		if frames[0]["userId"] != float64(1) {
			t.Fatalf("%s ended frame userId = %v, want 1", name, frames[0]["userId"])
		}
	}

	h.mu.Lock()
	active := h.calls.IsActive(7)
	h.mu.Unlock()
	if active {
		t.Fatal("expected call to be inactive")
	}
}

func TestRouteGroupCallLeaveWhenNotInCallIsSilent(t *testing.T) {
	h, _, aliceConn, bob, bobConn, _, _ := threeUsers(t, true)
	seedCall(h, 7, false, 1)

	// Carol never joined; bob never joined either. Bob leaving is a no-op.
	h.Route(bob, []byte(`{"type":"group-call-leave","groupId":7}`))

	if n := len(aliceConn.frames(t)); n != 0 {
		t.Fatalf("alice got %d frames, want 0", n)
	}
	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0", n)
	}
}

func TestRouteGroupCallBusyTargeted(t *testing.T) {
	h, _, aliceConn, bob, _, _, carolConn := threeUsers(t, true)

	h.Route(bob, []byte(`{"type":"group-call-busy","groupId":7,"to":1,"reason":"in another call"}`))

	frames := aliceConn.framesOfType(t, MsgTypeGroupCallBusy)
	if len(frames) != 1 {
		t.Fatalf("alice got %d busy frames, want 1", len(frames))
	}
	f := frames[0]
	if f["to"] != float64(1) || f["userId"] != float64(2) || f["reason"] != "in another call" {
		t.Fatalf("unexpected busy frame: %v", f)
	}

	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteGroupCallBusyFallsBackToParticipants(t *testing.T) {
	h, _, aliceConn, _, bobConn, carol, carolConn := threeUsers(t, true)
	seedCall(h, 7, false, 1, 2, 3)

	h.Route(carol, []byte(`{"type":"group-call-busy","groupId":7}`))

	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn} {
		frames := conn.framesOfType(t, MsgTypeGroupCallBusy)
		if len(frames) != 1 {
			t.Fatalf("%s got %d busy frames, want 1", name, len(frames))
		}
		if frames[0]["reason"] != "User is busy" {
			t.Fatalf("%s reason = %q, want default", name, frames[0]["reason"])
		}
		if _, present := frames[0]["to"]; present {
			t.Fatalf("%s busy frame should omit 'to': %v", name, frames[0])
		}
	}

	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteGroupNegotiationImplicitlyJoins(t *testing.T) {
	h, _, aliceConn, bob, _, _, carolConn := threeUsers(t, true)
	seedCall(h, 7, false, 1)

	h.Route(bob, []byte(`{"type":"group-call-offer","groupId":7,"sdp":"offer-blob"}`))

	frames := aliceConn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("alice got %d frames, want 1", len(frames))
	}
	if frames[0]["type"] != "group-call-offer" || frames[0]["sdp"] != "offer-blob" {
		t.Fatalf("unexpected frame: %v", frames[0])
	}
	if frames[0]["userId"] != float64(2) || frames[0]["sender_username"] != "bob" {
		t.Fatalf("expected stamped sender, got %v", frames[0])
	}

	// Negotiating made bob a participant.
	h.mu.Lock()
	roster := h.calls.Participants(7)
	h.mu.Unlock()
	if len(roster) != 2 || roster[1] != 2 {
		t.Fatalf("roster = %v, want [1 2]", roster)
	}

	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteGroupNegotiationTargeted(t *testing.T) {
	h, _, aliceConn, bob, _, _, carolConn := threeUsers(t, true)
	seedCall(h, 7, false, 1, 3)

	h.Route(bob, []byte(`{"type":"group-call-answer","groupId":7,"to":1,"sdp":"answer-blob"}`))

	if n := len(aliceConn.frames(t)); n != 1 {
		t.Fatalf("alice got %d frames, want 1", n)
	}
	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteChatMessageUnicast(t *testing.T) {
	h, alice, _, _, bobConn, _, carolConn := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"chat_message","to":2,"content":"hi"}`))

	frames := bobConn.framesOfType(t, MsgTypeChatMessage)
	if len(frames) != 1 {
		t.Fatalf("bob got %d chat frames, want 1", len(frames))
	}
	if frames[0]["content"] != "hi" || frames[0]["sender_username"] != "alice" {
		t.Fatalf("unexpected chat frame: %v", frames[0])
	}
	if n := len(carolConn.frames(t)); n != 0 {
		t.Fatalf("carol got %d frames, want 0", n)
	}
}

func TestRouteChatMessageBroadcastWithoutTarget(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, carolConn := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"chat_message","content":"hi all"}`))

	for name, conn := range map[string]*fakeConn{"bob": bobConn, "carol": carolConn} {
		if n := len(conn.framesOfType(t, MsgTypeChatMessage)); n != 1 {
			t.Fatalf("%s got %d chat frames, want 1", name, n)
		}
	}
	if n := len(aliceConn.frames(t)); n != 0 {
		t.Fatalf("alice got %d frames, want 0", n)
	}
}

func TestRouteChatMessagePreservesClaimedSender(t *testing.T) {
	h, alice, _, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"chat_message","to":2,"content":"hi","sender_username":"mystery"}`))

	frames := bobConn.framesOfType(t, MsgTypeChatMessage)
	if len(frames) != 1 {
		t.Fatalf("bob got %d chat frames, want 1", len(frames))
	}
	if frames[0]["sender_username"] != "mystery" {
		t.Fatalf("sender_username = %q, want claimed name preserved", frames[0]["sender_username"])
	}
}

func TestRouteJoinAnnouncement(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"join"}`))

	frames := bobConn.framesOfType(t, MsgTypeUserJoined)
	if len(frames) != 1 {
		t.Fatalf("bob got %d user_joined frames, want 1", len(frames))
	}
	if frames[0]["username"] != "alice" || frames[0]["user_id"] != float64(1) {
		t.Fatalf("unexpected user_joined frame: %v", frames[0])
	}
	if n := len(aliceConn.frames(t)); n != 0 {
		t.Fatalf("alice got %d frames, want 0", n)
	}
}

func TestRouteJoinHonorsClaimedUsername(t *testing.T) {
	h, alice, _, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"join","username":"Ally"}`))

	frames := bobConn.framesOfType(t, MsgTypeUserJoined)
	if len(frames) != 1 {
		t.Fatalf("bob got %d user_joined frames, want 1", len(frames))
	}
	if frames[0]["username"] != "Ally" {
		t.Fatalf("username = %q, want Ally", frames[0]["username"])
	}
}

func TestRouteUnknownTypePassesThrough(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, carolConn := threeUsers(t, true)

	h.Route(alice, []byte(`{"type":"whiteboard-sync","strokes":3}`))

	for name, conn := range map[string]*fakeConn{"bob": bobConn, "carol": carolConn} {
		frames := conn.frames(t)
		if len(frames) != 1 {
			t.Fatalf("%s got %d frames, want 1", name, len(frames))
		}
		if frames[0]["type"] != "whiteboard-sync" || frames[0]["strokes"] != float64(3) {
			t.Fatalf("%s got unexpected frame: %v", name, frames[0])
		}
		if frames[0]["sender_username"] != "alice" {
			t.Fatalf("%s sender_username = %v, want alice", name, frames[0]["sender_username"])
		}
	}
	if n := len(aliceConn.frames(t)); n != 0 {
		t.Fatalf("alice got %d frames, want 0", n)
	}
}

func TestRouteMalformedJSONRelaysRawText(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`{oops`))

	errs := aliceConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("alice got %d error frames, want 1", len(errs))
	}
	if errs[0]["detail"] != "Invalid JSON payload" {
		t.Fatalf("detail = %q", errs[0]["detail"])
	}

	texts := bobConn.framesOfType(t, MsgTypeText)
	if len(texts) != 1 {
		t.Fatalf("bob got %d text frames, want 1", len(texts))
	}
	if texts[0]["content"] != `{oops` || texts[0]["from_user_id"] != float64(1) {
		t.Fatalf("unexpected text frame: %v", texts[0])
	}
}

func TestRouteMalformedJSONWithRelayDisabled(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, _ := threeUsers(t, false)

	h.Route(alice, []byte(`{oops`))

	if n := len(aliceConn.framesOfType(t, MsgTypeError)); n != 1 {
		t.Fatalf("alice got %d error frames, want 1", n)
	}
	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0 with relay disabled", n)
	}
}

func TestRouteNonObjectJSONIsProcessingError(t *testing.T) {
	h, alice, aliceConn, _, bobConn, _, _ := threeUsers(t, true)

	h.Route(alice, []byte(`"zzz"`))

	errs := aliceConn.framesOfType(t, MsgTypeError)
	if len(errs) != 1 {
		t.Fatalf("alice got %d error frames, want 1", len(errs))
	}
	if errs[0]["detail"] != "Error processing your message: payload must be a JSON object" {
		t.Fatalf("detail = %q", errs[0]["detail"])
	}
	// Unlike malformed input, valid non-object JSON is never relayed.
	if n := len(bobConn.frames(t)); n != 0 {
		t.Fatalf("bob got %d frames, want 0", n)
	}
}
