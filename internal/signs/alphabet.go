// Package signs converts text to ASL signing instructions for deaf, mute, and
// blind receivers.
package signs

// fingerspellAlphabet describes how to form each ASL letter.
var fingerspellAlphabet = map[rune]string{
	'A': "Make a fist with thumb resting on the side of the index finger",
	'B': "Hold fingers straight up together, thumb tucked across palm",
	'C': "Curve hand into a 'C' shape, fingers together",
	'D': "Touch thumb to middle, ring, and pinky fingers; index points up",
	'E': "Curl all fingers down, thumb tucked under fingertips",
	'F': "Touch thumb and index finger in a circle, other fingers straight up",
	'G': "Point index finger and thumb parallel to ground, other fingers closed",
	'H': "Point index and middle fingers sideways together, other fingers closed",
	'I': "Make a fist with pinky finger extended up",
	'J': "Make 'I' handshape and trace a 'J' motion in the air",
	'K': "Point index and middle finger up in a 'V', thumb between them",
	'L': "Make an 'L' shape with thumb and index finger",
	'M': "Tuck thumb under first three fingers draped over",
	'N': "Tuck thumb under first two fingers draped over",
	'O': "Touch all fingertips to thumb forming an 'O' shape",
	'P': "Like 'K' but pointing downward",
	'Q': "Like 'G' but pointing downward",
	'R': "Cross middle finger over index finger, other fingers closed",
	'S': "Make a fist with thumb wrapped over fingers",
	'T': "Tuck thumb between index and middle finger in a fist",
	'U': "Hold index and middle finger straight up together, other fingers closed",
	'V': "Hold index and middle finger up in a 'V' shape",
	'W': "Hold index, middle, and ring fingers up spread apart",
	'X': "Hook index finger like a claw, other fingers closed",
	'Y': "Extend thumb and pinky, other fingers closed (hang loose sign)",
	'Z': "Point index finger and trace a 'Z' in the air",
}

// letterImageURL returns the Lifeprint fingerspelling illustration for an
// uppercase letter, or "" when none exists.
func letterImageURL(letter rune) string {
	if letter < 'A' || letter > 'Z' {
		return ""
	}
	return "https://www.lifeprint.com/asl101/fingerspelling/abc-gifs/" + string(letter+('a'-'A')) + ".gif"
}

// commonPhrase pairs an everyday phrase with its ASL description.
type commonPhrase struct {
	Phrase         string `json:"phrase"`
	ASLDescription string `json:"asl_description"`
}

var commonPhrases = []commonPhrase{
	{"Hello", "Open hand, touch forehead near temple, move outward like a salute"},
	{"Thank you", "Flat hand touches chin and moves forward and down"},
	{"Please", "Flat hand circles on chest"},
	{"Sorry", "Make 'A' handshape (fist), circle on chest"},
	{"Yes", "Make 'S' handshape (fist), nod it up and down like nodding head"},
	{"No", "Extend index and middle finger, snap them to thumb"},
	{"Help", "Flat hand on top of fist with thumb up, lift both hands together"},
	{"I love you", "Extend thumb, index finger, and pinky; palm out"},
	{"How are you", "Both bent hands roll outward from chest, then point to the person"},
	{"Good morning", "Flat hand from chin forward, then arm rises like the sun"},
}
