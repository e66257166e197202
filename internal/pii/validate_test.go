package pii

import "testing"

// TestLuhnValid tests the Luhn checksum validator
func TestLuhnValid(t *testing.T) {
	t.Run("ValidNumbers", func(t *testing.T) {
		valid := []string{
			"4111111111111111", // Visa test number
			"5500005555555559", // MasterCard test number
			"378282246310005",  // Amex test number
			"6011111111111117", // Discover test number
		}
		for _, number := range valid {
			if !luhnValid(number) {
				t.Errorf("Expected %s to pass the Luhn check", number)
			}
		}
	})

	t.Run("InvalidNumbers", func(t *testing.T) {
		invalid := []string{
			"4111111111111112",
			"1234567890123456",
			"0000000000000001",
		}
		for _, number := range invalid {
			if luhnValid(number) {
				t.Errorf("Expected %s to fail the Luhn check", number)
			}
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		if luhnValid("") {
			t.Error("Empty input should fail the Luhn check")
		}
	})
}

// TestValidCardNumber tests card-shaped span validation
func TestValidCardNumber(t *testing.T) {
	t.Run("AcceptsSeparatedDigits", func(t *testing.T) {
		if !validCardNumber("4111-1111-1111-1111") {
			t.Error("Dashed card number should validate")
		}
		if !validCardNumber("4111 1111 1111 1111") {
			t.Error("Spaced card number should validate")
		}
	})

	t.Run("RejectsBadChecksum", func(t *testing.T) {
		if validCardNumber("4111111111111112") {
			t.Error("Luhn-invalid card number should be rejected")
		}
	})

	t.Run("RejectsBadLength", func(t *testing.T) {
		// 12 digits, Luhn-valid prefix arithmetic is irrelevant here
		if validCardNumber("411111111111") {
			t.Error("12-digit number should be rejected")
		}
		if validCardNumber("41111111111111111111") {
			t.Error("20-digit number should be rejected")
		}
	})
}

// TestValidSSN tests the SSA issuance range rules
func TestValidSSN(t *testing.T) {
	t.Run("AcceptsIssuableNumbers", func(t *testing.T) {
		accepted := []string{
			"123-45-6789",
			"123456789",
			"123 45 6789",
			"001-01-0001",
		}
		for _, ssn := range accepted {
			if !validSSN(ssn) {
				t.Errorf("Expected %s to be accepted", ssn)
			}
		}
	})

	t.Run("RejectsReservedAreas", func(t *testing.T) {
		rejected := []string{
			"000-12-3456", // area 000
			"666-12-3456", // area 666
			"900-12-3456", // area 900-999
			"999-12-3456",
		}
		for _, ssn := range rejected {
			if validSSN(ssn) {
				t.Errorf("Expected %s to be rejected", ssn)
			}
		}
	})

	t.Run("RejectsZeroGroupAndSerial", func(t *testing.T) {
		if validSSN("123-00-4567") {
			t.Error("Group 00 should be rejected")
		}
		if validSSN("123-45-0000") {
			t.Error("Serial 0000 should be rejected")
		}
	})

	t.Run("RejectsWrongLength", func(t *testing.T) {
		if validSSN("123-45-678") {
			t.Error("8-digit value should be rejected")
		}
		if validSSN("123-45-67890") {
			t.Error("10-digit value should be rejected")
		}
	})
}

// TestValidPhone tests the post-match digit floor
func TestValidPhone(t *testing.T) {
	t.Run("AcceptsTenOrMoreDigits", func(t *testing.T) {
		if !validPhone("(555) 123-4567") {
			t.Error("10-digit US number should be accepted")
		}
		if !validPhone("+44 20 7946 0958") {
			t.Error("International number should be accepted")
		}
	})

	t.Run("RejectsShortNumbers", func(t *testing.T) {
		if validPhone("555-1234") {
			t.Error("7-digit number should be rejected")
		}
	})
}

// TestDigitsOnly tests separator stripping
func TestDigitsOnly(t *testing.T) {
	got := digitsOnly("+1 (555) 123-4567")
	if got != "15551234567" {
		t.Errorf("Expected 15551234567, got %s", got)
	}

	if digitsOnly("no digits here") != "" {
		t.Error("Expected empty result for digit-free input")
	}
}
