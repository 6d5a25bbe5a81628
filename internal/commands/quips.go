package commands

var greetingQuips = []string{
	"Howdy, %s! How's your fantasy team doing? 🏈",
	"oh hi %s 👋 has anyone made the Jimmy Johns order yet? 🥪",
	"Hello %s! Today's vibe: commit directly to prod! 🚀",
	"hey %s, did you remember to run a build on that frontend? 😅",
	"sup %s. i heard you like bots so i put a bot in your chat 🤖",
	"What's up %s! Do you know if we've restocked the coffee? ☕",
	"Hey %s, down for some foosball? ⚽",
	"Hey %s, think you could review my MR real quick? 🙏",
	"hello %s! Are we ready to go to non-prod yet? 🛫",
	"Hey %s, GEAUX TIGERS! 🐯🟪🟨",
	"Hey %s, LIONS UP! 🦁🟩🟨",
}

var cannedRoasts = []string{
	"%s writes code like the linter owes them money.",
	"%s has more open tabs than closed tickets.",
	"%s treats every standup like a season finale.",
	"%s's commit messages are just vibes and a period.",
	"%s tested it in prod and called it a feature flag.",
}
