package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core/chat"
)

// starterDocuments bootstrap the tutor knowledge base for a fresh install.
var starterDocuments = []chat.NewDocument{
	{
		Subject:    "mathematics",
		Topic:      "algebra basics",
		GradeLevel: "Grade 8",
		Content: "Algebra uses letters to stand for unknown numbers. To solve an equation, " +
			"apply the same operation to both sides until the unknown stands alone. " +
			"For example, to solve x + 3 = 7, subtract 3 from both sides: x = 4.",
	},
	{
		Subject:    "mathematics",
		Topic:      "fractions",
		GradeLevel: "Grade 8",
		Content: "A fraction represents a part of a whole. To add or subtract fractions, " +
			"rewrite them over a common denominator first. To multiply, multiply numerators " +
			"and denominators; to divide, multiply by the reciprocal.",
	},
	{
		Subject:    "physics",
		Topic:      "newton's laws of motion",
		GradeLevel: "Grade 8",
		Content: "Newton's first law: an object keeps its state of rest or uniform motion " +
			"unless acted on by a net force. Second law: force equals mass times acceleration " +
			"(F = ma). Third law: for every action there is an equal and opposite reaction.",
	},
	{
		Subject:    "chemistry",
		Topic:      "the periodic table",
		GradeLevel: "Grade 8",
		Content: "The periodic table arranges elements by increasing atomic number. " +
			"Elements in the same column (group) share chemical properties because they have " +
			"the same number of outer electrons. Rows are called periods.",
	},
	{
		Subject:    "biology",
		Topic:      "photosynthesis",
		GradeLevel: "Grade 8",
		Content: "Photosynthesis is how green plants make food. Chlorophyll in leaves absorbs " +
			"sunlight and uses it to turn carbon dioxide and water into glucose and oxygen: " +
			"6CO2 + 6H2O -> C6H12O6 + 6O2.",
	},
}

func (cli *commandLine) seedKnowledgeBase() error {
	kb, err := cli.newKB()
	if err != nil {
		return errors.Wrap(err, "setting up knowledge base")
	}

	ctx := context.Background()
	for _, nd := range starterDocuments {
		doc, err := kb.AddDocument(ctx, nd)
		if err != nil {
			return errors.Wrapf(err, "seeding %q", nd.Topic)
		}
		logger.Printf("seeded %s / %s (%s)", doc.Subject, doc.Topic, doc.ID)
	}
	return nil
}
