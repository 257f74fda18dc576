package store

import "fmt"

type seedCard struct {
	name        string
	miseryIndex float64
}

// The stock catalog: 50 university misfortunes. Misery indices are unique,
// which keeps the gameplay ordering total.
var catalog = []seedCard{
	{"Lose your pen during the written exam", 1.0},
	{"Printer runs out of ink before the thesis", 2.5},
	{"The cafeteria ran out of everything, even bread", 5.0},
	{"You realize you were in the wrong classroom and missed the exam", 7.5},
	{"You're asked about the chapter you didn't study", 10.0},
	{"You fall asleep during an important lecture", 12.5},
	{"You're called for attendance while you're in the bathroom", 15.0},
	{"The professor forgets to record your grade", 17.5},
	{"Wi-Fi drops during an online exam", 20.0},
	{"You slip on the stairs in front of everyone", 22.5},
	{"Your project gets accidentally deleted from the server", 25.0},
	{"You finish the thesis and you find out your advisor retired", 27.5},
	{"Your roommate steals food from the fridge", 30.0},
	{"The microphone doesn't work during your presentation", 32.5},
	{"Your water bottle explodes in your bag, soaking everything", 35.0},
	{"Professor stares at you for 30 minutes during the exam", 37.5},
	{"You forget to submit the project before the deadline", 40.0},
	{"One of your shoes breaks in the middle of campus", 42.5},
	{"You embarrass yourself during the oral exam", 45.0},
	{"You find out you left the gas on at home", 47.5},
	{"Stuck in a project group where nobody does anything", 50.0},
	{"You lose your university ID badge before an exam", 52.5},
	{"Your university ID photo looks awful", 55.0},
	{"You have a cold during the written exam", 57.5},
	{"Your wireless mouse freezes mid-project", 60.0},
	{"You get hiccups during the oral exam", 61.0},
	{"You drop your phone in the university bathroom", 62.5},
	{"You realize you took the wrong exam", 63.5},
	{"Prof's done, but the blackboard's full of hieroglyphics", 65.0},
	{"Your name is pronounced wrong at graduation", 66.0},
	{"You drop your pizza on the floor in front of everyone", 67.5},
	{"Your alarm breaks and you miss the year's only exam", 68.5},
	{"You arrive in class and find out the exam was online", 70.0},
	{"You're recorded singing in the bathroom without knowing", 71.0},
	{"You hand in the exam but forget to sign it", 72.5},
	{"You confuse mute and unmute during video lessons", 73.5},
	{"You lose connection during the online graduation", 75.0},
	{"A pigeon hits you entering the university", 77.5},
	{"Webcam freezes on a ridiculous face during presentation", 78.5},
	{"You nap in the library and snore in front of everyone", 80.0},
	{"The 12-credit course you attended was not in your plan", 81.0},
	{"Your classmate claims your project as theirs", 82.5},
	{"Advisor makes you redo everything a week before graduation", 85.0},
	{"You drop your laptop down the stairs", 87.5},
	{"You get caught cheating and your exam is canceled", 90.0},
	{"Your zipper breaks during the presentation", 92.5},
	{"A stranger insults you during your thesis defense", 95.0},
	{"You fail exams and lose your scholarship", 97.5},
	{"You find out the course you need was canceled", 99.0},
	{"Your professor skips your graduation session", 100.0},
}

// seedCards populates the card catalog on first boot. An already populated
// table is left alone.
func (s *SQLiteStore) seedCards() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cards").Scan(&count); err != nil {
		return fmt.Errorf("failed to count cards: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, card := range catalog {
		imagePath := fmt.Sprintf("card%d.jpg", i)
		if _, err := tx.Exec(
			"INSERT INTO cards (name, image_path, misery_index) VALUES (?, ?, ?)",
			card.name, imagePath, card.miseryIndex,
		); err != nil {
			return fmt.Errorf("failed to insert card %q: %w", card.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
