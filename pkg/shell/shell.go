package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ha1tch/minired/pkg/models"
)

// GraphService is the set of operations the console drives
type GraphService interface {
	AddPerson(ctx context.Context, p models.Person) (models.Person, error)
	ListPeople(ctx context.Context) ([]models.Person, error)
	FindPerson(ctx context.Context, name string) (models.Person, bool, error)
	DeletePerson(ctx context.Context, name string) error
	CreateFriendship(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, name string) ([]models.Person, error)
	DeleteFriendship(ctx context.Context, a, b string) (int, error)
	RecommendByCity(ctx context.Context, name string) ([]models.Person, error)
	RecommendByHobby(ctx context.Context, name string) ([]models.Person, error)
	Stats(ctx context.Context) (models.Stats, error)
}

const menu = `
=== MINI SOCIAL NETWORK ===
1. Add person
2. List all people
3. Find person
4. Create friendship
5. Show a person's friends
6. Delete friendship
7. Recommendations by city
8. Recommendations by hobby
9. Statistics
10. Delete person
0. Exit
`

// Column widths of the people table
const (
	nameWidth  = 20
	cityWidth  = 15
	hobbyWidth = 15
)

// errInputClosed ends the loop when stdin is exhausted
var errInputClosed = errors.New("input closed")

// Shell is the interactive console menu
type Shell struct {
	svc    GraphService
	in     *bufio.Scanner
	out    io.Writer
	logger zerolog.Logger
}

// New creates a shell reading commands from in and writing to out
func New(svc GraphService, in io.Reader, out io.Writer, logger zerolog.Logger) *Shell {
	return &Shell{
		svc:    svc,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger.With().Str("component", "shell").Logger(),
	}
}

// Run loops over the menu until the user exits, input ends or ctx is done.
// Operation errors are printed and the loop continues.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(s.out, menu)
		choice, err := s.prompt("Choose an option: ")
		if errors.Is(err, errInputClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if choice == "0" {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		err = s.dispatch(ctx, choice)
		if errors.Is(err, errInputClosed) {
			return nil
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("option", choice).Msg("Menu operation failed")
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, choice string) error {
	switch choice {
	case "1":
		return s.addPerson(ctx)
	case "2":
		people, err := s.svc.ListPeople(ctx)
		if err != nil {
			return err
		}
		s.printPeople(people)
	case "3":
		return s.findPerson(ctx)
	case "4":
		return s.createFriendship(ctx)
	case "5":
		return s.listFriends(ctx)
	case "6":
		return s.deleteFriendship(ctx)
	case "7":
		return s.recommend(ctx, "city", s.svc.RecommendByCity)
	case "8":
		return s.recommend(ctx, "hobby", s.svc.RecommendByHobby)
	case "9":
		return s.stats(ctx)
	case "10":
		return s.deletePerson(ctx)
	default:
		fmt.Fprintln(s.out, "Invalid option. Try again.")
	}
	return nil
}

func (s *Shell) addPerson(ctx context.Context) error {
	name, err := s.required("Name: ")
	if err != nil {
		return err
	}
	city, err := s.required("City: ")
	if err != nil {
		return err
	}
	hobby, err := s.required("Hobby: ")
	if err != nil {
		return err
	}

	if _, err := s.svc.AddPerson(ctx, models.Person{Name: name, City: city, Hobby: hobby}); err != nil {
		return fmt.Errorf("failed to save person: %w", err)
	}
	fmt.Fprintln(s.out, "Person created/updated.")
	return nil
}

func (s *Shell) findPerson(ctx context.Context) error {
	name, err := s.required("Name to find: ")
	if err != nil {
		return err
	}

	p, found, err := s.svc.FindPerson(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(s.out, "Person not found.")
		return nil
	}
	fmt.Fprintf(s.out, "Found: %s | %s | %s\n", p.Name, p.City, p.Hobby)
	return nil
}

func (s *Shell) createFriendship(ctx context.Context) error {
	a, b, err := s.pair()
	if err != nil {
		return err
	}

	created, err := s.svc.CreateFriendship(ctx, a, b)
	if err != nil {
		return fmt.Errorf("failed to create friendship: %w", err)
	}
	if created {
		fmt.Fprintln(s.out, "Friendship created.")
	} else {
		fmt.Fprintln(s.out, "No changes (already friends or unknown names).")
	}
	return nil
}

func (s *Shell) listFriends(ctx context.Context) error {
	name, err := s.required("Person: ")
	if err != nil {
		return err
	}

	friends, err := s.svc.ListFriends(ctx, name)
	if err != nil {
		return err
	}
	if len(friends) == 0 {
		fmt.Fprintln(s.out, "No friends registered.")
		return nil
	}
	s.printPeople(friends)
	return nil
}

func (s *Shell) deleteFriendship(ctx context.Context) error {
	a, b, err := s.pair()
	if err != nil {
		return err
	}

	removed, err := s.svc.DeleteFriendship(ctx, a, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Friendships deleted: %d\n", removed)
	return nil
}

func (s *Shell) recommend(ctx context.Context, label string, fn func(context.Context, string) ([]models.Person, error)) error {
	name, err := s.required("Person: ")
	if err != nil {
		return err
	}

	people, err := fn(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "-- Recommendations by %s --\n", label)
	s.printPeople(people)
	return nil
}

func (s *Shell) stats(ctx context.Context) error {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Total people: %d\n", st.TotalPeople)
	fmt.Fprintf(s.out, "Total friendships: %d\n", st.TotalFriendships)
	fmt.Fprintf(s.out, "Average friends per person: %.2f\n", st.AverageFriendsPerPerson)
	return nil
}

func (s *Shell) deletePerson(ctx context.Context) error {
	name, err := s.required("Name to delete: ")
	if err != nil {
		return err
	}

	if err := s.svc.DeletePerson(ctx, name); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Person (and their friendships) deleted.")
	return nil
}

func (s *Shell) pair() (string, string, error) {
	a, err := s.required("Name 1: ")
	if err != nil {
		return "", "", err
	}
	b, err := s.required("Name 2: ")
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

// printPeople writes the fixed-width people table
func (s *Shell) printPeople(people []models.Person) {
	if len(people) == 0 {
		fmt.Fprintln(s.out, "No people registered.")
		return
	}

	fmt.Fprintf(s.out, "%-*s %-*s %-*s\n", nameWidth, "Name", cityWidth, "City", hobbyWidth, "Hobby")
	fmt.Fprintln(s.out, strings.Repeat("-", nameWidth+cityWidth+hobbyWidth+2))
	for _, p := range people {
		fmt.Fprintf(s.out, "%s %s %s\n",
			cell(p.Name, nameWidth),
			cell(p.City, cityWidth),
			cell(p.Hobby, hobbyWidth))
	}
}

// cell truncates v to width runes and pads it on the right
func cell(v string, width int) string {
	if utf8.RuneCountInString(v) > width {
		v = string([]rune(v)[:width])
	}
	return v + strings.Repeat(" ", width-utf8.RuneCountInString(v))
}

// required re-asks until the answer is not blank
func (s *Shell) required(label string) (string, error) {
	for {
		v, err := s.prompt(label)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintln(s.out, "This field is required.")
	}
}

func (s *Shell) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(s.in.Text()), nil
}
