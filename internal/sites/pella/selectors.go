package pella

import "regexp"

const (
	loginURL = "https://www.pella.app/login"
	homeURL  = "https://www.pella.app/home"
)

var (
	expiryFullRe = regexp.MustCompile(`Your server expires in\s*(\d+)D\s*(\d+)H\s*(\d+)M`)
	expiryDaysRe = regexp.MustCompile(`Your server expires in\s*(\d+)D`)
)

// Clerk renders the form; the primary button has shipped under several
// guises.
var continueButtonJS = `
(function() {
	const sels = ['button.cl-formButtonPrimary', "button[data-localization-key='formButtonPrimary']", "button[type='submit']", 'form button'];
	for (const sel of sels) {
		const btn = document.querySelector(sel);
		if (btn) { btn.scrollIntoView(true); btn.click(); return true; }
	}
	for (const btn of document.querySelectorAll('button')) {
		if ((btn.textContent || '').includes('Continue')) { btn.scrollIntoView(true); btn.click(); return true; }
	}
	return false;
})()`

var passwordSelectors = []string{
	`input[type='password']`,
	`input[name='password']`,
	`input.cl-formFieldInput[type='password']`,
	`#password`,
}
