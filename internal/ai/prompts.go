package ai

const commentPrompt = "You are a friendly and enthusiastic social media user. Look at this photo and write a short, " +
	"positive, and complimentary comment, like you would on Instagram. Keep it under 15 words and include an emoji. " +
	"For example: 'Wow, what a beautiful shot! 😍' or 'This looks like so much fun! ❤️'."

const captionPrompt = "Analyze this image and generate 3 to 5 relevant, single-word, lowercase tags that describe the " +
	"main subjects, setting, or mood, for example 'nature, sunset, beach, ocean, serene'. " +
	"Also write a one-sentence diary caption for the photo. " +
	"Respond with JSON containing a \"caption\" string and a \"tags\" array."
